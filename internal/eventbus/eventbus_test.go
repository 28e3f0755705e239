package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type ping struct{ N int }
type pong struct{ N int }

func TestSubscribePublish(t *testing.T) {
	b := New()
	var got []int
	SubscribeTo(b, func(_ context.Context, e ping) { got = append(got, e.N) })
	SubscribeTo(b, func(_ context.Context, e ping) { got = append(got, e.N*10) })

	PublishTo(context.Background(), b, ping{N: 1})
	PublishTo(context.Background(), b, pong{N: 2})

	assert.Equal(t, []int{1, 10}, got)
}

func TestUnsubscribe_RemovesOnlyItsHandler(t *testing.T) {
	b := New()
	var got []string
	h := func(_ context.Context, e ping) { got = append(got, "same") }
	unsubA := SubscribeTo(b, h)
	SubscribeTo(b, h)
	assert.Equal(t, 2, Len[ping](b))

	unsubA()
	unsubA()
	assert.Equal(t, 1, Len[ping](b))

	PublishTo(context.Background(), b, ping{})
	assert.Equal(t, []string{"same"}, got)
}

func TestGlobalBus(t *testing.T) {
	t.Cleanup(func() { Use(nil) })

	Use(nil)
	calls := 0
	unsub := Subscribe(func(context.Context, ping) { calls++ })
	Publish(context.Background(), ping{})
	unsub()
	assert.Zero(t, calls)

	Use(New())
	unsub = Subscribe(func(context.Context, ping) { calls++ })
	Publish(context.Background(), ping{})
	unsub()
	Publish(context.Background(), ping{})
	assert.Equal(t, 1, calls)
}
