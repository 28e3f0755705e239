package dataloader

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder[K comparable, V any] struct {
	mu    sync.Mutex
	calls [][]K
	data  map[K]V
	err   error
}

func (r *recorder[K, V]) fetch(_ context.Context, keys []K) (map[K]V, error) {
	r.mu.Lock()
	r.calls = append(r.calls, slices.Clone(keys))
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := make(map[K]V, len(keys))
	for _, k := range keys {
		if v, ok := r.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (r *recorder[K, V]) Calls() [][]K {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

func TestLoad_DeduplicatesWithinWindow(t *testing.T) {
	rec := &recorder[int, string]{data: map[int]string{1: "a", 2: "b"}}
	l := New(rec.fetch, Config[int, string]{Name: "test"})
	ctx := context.Background()

	t1 := l.LoadThunk(ctx, 1)
	t2 := l.LoadThunk(ctx, 2)
	t3 := l.LoadThunk(ctx, 1)
	require.Empty(t, rec.Calls(), "fetch must not run before dispatch")
	require.Equal(t, 2, l.Pending())

	l.Dispatch(ctx)

	v1, err := t1()
	require.NoError(t, err)
	v2, err := t2()
	require.NoError(t, err)
	v3, err := t3()
	require.NoError(t, err)

	assert.Equal(t, "a", v1)
	assert.Equal(t, "b", v2)
	assert.Equal(t, v1, v3)
	if diff := cmp.Diff([][]int{{1, 2}}, rec.Calls()); diff != "" {
		t.Fatalf("fetch calls mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_MissingKey(t *testing.T) {
	rec := &recorder[int, string]{data: map[int]string{1: "a", 3: "c"}}
	l := New(rec.fetch, Config[int, string]{})
	ctx := context.Background()

	t1, t2, t3 := l.LoadThunk(ctx, 1), l.LoadThunk(ctx, 2), l.LoadThunk(ctx, 3)
	l.Dispatch(ctx)

	v1, err1 := t1()
	_, err2 := t2()
	v3, err3 := t3()

	require.NoError(t, err1)
	require.NoError(t, err3)
	assert.Equal(t, "a", v1)
	assert.Equal(t, "c", v3)
	assert.True(t, IsNotFound(err2))
	var nf ErrNotFound[int]
	require.ErrorAs(t, err2, &nf)
	assert.Equal(t, 2, nf.Key)
}

func TestLoad_MissingPolicy(t *testing.T) {
	rec := &recorder[int, []string]{data: map[int][]string{1: {"x"}}}
	l := New(rec.fetch, Config[int, []string]{Missing: EmptySlice[int, string]})
	ctx := context.Background()

	t1, t2 := l.LoadThunk(ctx, 1), l.LoadThunk(ctx, 2)
	l.Dispatch(ctx)

	v1, err := t1()
	require.NoError(t, err)
	v2, err := t2()
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, v1)
	assert.NotNil(t, v2)
	assert.Empty(t, v2)
}

func TestLoad_BatchFailure(t *testing.T) {
	boom := errors.New("boom")
	rec := &recorder[int, string]{err: boom}
	l := New(rec.fetch, Config[int, string]{Name: "pages"})
	ctx := context.Background()

	t5, t6 := l.LoadThunk(ctx, 5), l.LoadThunk(ctx, 6)
	l.Dispatch(ctx)

	_, err5 := t5()
	_, err6 := t6()
	require.Error(t, err5)
	assert.Same(t, err5, err6)
	assert.ErrorIs(t, err5, boom)

	var be *BatchError
	require.ErrorAs(t, err5, &be)
	assert.Equal(t, "pages", be.Loader)
	assert.Equal(t, 2, be.Keys)
	assert.Len(t, rec.Calls(), 1)
}

func TestLoad_FailureStaysCached(t *testing.T) {
	rec := &recorder[int, string]{err: errors.New("down")}
	l := New(rec.fetch, Config[int, string]{})
	ctx := context.Background()

	_, err := l.Load(ctx, 1)
	require.Error(t, err)

	rec.err = nil
	_, err = l.Load(ctx, 1)
	require.Error(t, err)
	assert.Len(t, rec.Calls(), 1)

	l.Clear(1)
	_, err = l.Load(ctx, 1)
	assert.True(t, IsNotFound(err))
	assert.Len(t, rec.Calls(), 2)
}

func TestLoad_PanicBecomesBatchError(t *testing.T) {
	l := New(func(context.Context, []int) (map[int]string, error) {
		panic("kaboom")
	}, Config[int, string]{})

	_, err := l.Load(context.Background(), 1)
	var be *BatchError
	require.ErrorAs(t, err, &be)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestLoad_InvalidKey(t *testing.T) {
	rec := &recorder[int, string]{}
	l := New(rec.fetch, Config[int, string]{})
	ctx := context.Background()

	thunk := l.LoadThunk(ctx, 0)
	assert.Zero(t, l.Pending())
	_, err := thunk()
	assert.ErrorIs(t, err, ErrInvalidKey)

	l.Dispatch(ctx)
	assert.Empty(t, rec.Calls())
}

func TestLoad_CustomValidator(t *testing.T) {
	rec := &recorder[string, int]{data: map[string]int{"": 7}}
	l := New(rec.fetch, Config[string, int]{Validate: func(string) error { return nil }})

	v, err := l.Load(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestLoad_OrderIndependent(t *testing.T) {
	data := map[int]string{1: "a", 2: "b", 3: "c", 4: "d"}
	orders := [][]int{{1, 2, 3, 4}, {4, 3, 2, 1}, {2, 4, 1, 3}}
	for _, order := range orders {
		rec := &recorder[int, string]{data: data}
		l := New(rec.fetch, Config[int, string]{})
		ctx := context.Background()

		thunks := make([]Thunk[string], len(order))
		for i, k := range order {
			thunks[i] = l.LoadThunk(ctx, k)
		}
		l.Dispatch(ctx)
		for i, k := range order {
			v, err := thunks[i]()
			require.NoError(t, err)
			assert.Equal(t, data[k], v, "order %v key %d", order, k)
		}
	}
}

func TestLoad_CacheAcrossWindows(t *testing.T) {
	rec := &recorder[int, string]{data: map[int]string{1: "a", 2: "b"}}
	l := New(rec.fetch, Config[int, string]{})
	ctx := context.Background()

	_, err := l.Load(ctx, 1)
	require.NoError(t, err)
	t1, t2 := l.LoadThunk(ctx, 1), l.LoadThunk(ctx, 2)
	l.Dispatch(ctx)
	_, _ = t1()
	_, _ = t2()

	if diff := cmp.Diff([][]int{{1}, {2}}, rec.Calls()); diff != "" {
		t.Fatalf("fetch calls mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_DisableCache(t *testing.T) {
	rec := &recorder[int, string]{data: map[int]string{1: "a"}}
	l := New(rec.fetch, Config[int, string]{DisableCache: true})
	ctx := context.Background()

	t1, t2 := l.LoadThunk(ctx, 1), l.LoadThunk(ctx, 1)
	l.Dispatch(ctx)
	_, _ = t1()
	_, _ = t2()
	_, err := l.Load(ctx, 1)
	require.NoError(t, err)

	if diff := cmp.Diff([][]int{{1}, {1}}, rec.Calls()); diff != "" {
		t.Fatalf("fetch calls mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, l.Prime(2, "b"))
}

func TestLoad_SeparateLoadersAreIsolated(t *testing.T) {
	recA := &recorder[int, string]{data: map[int]string{1: "a"}}
	recB := &recorder[int, string]{data: map[int]string{1: "b"}}
	opA := New(recA.fetch, Config[int, string]{})
	opB := New(recB.fetch, Config[int, string]{})
	ctx := context.Background()

	va, err := opA.Load(ctx, 1)
	require.NoError(t, err)
	vb, err := opB.Load(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, "a", va)
	assert.Equal(t, "b", vb)
	assert.Len(t, recA.Calls(), 1)
	assert.Len(t, recB.Calls(), 1)
}

func TestLoad_ForcingThunkDispatches(t *testing.T) {
	rec := &recorder[int, string]{data: map[int]string{1: "a", 2: "b"}}
	l := New(rec.fetch, Config[int, string]{})
	ctx := context.Background()

	t1 := l.LoadThunk(ctx, 1)
	_ = l.LoadThunk(ctx, 2)
	v, err := t1()
	require.NoError(t, err)
	assert.Equal(t, "a", v)
	assert.Zero(t, l.Pending())

	l.Dispatch(ctx)
	if diff := cmp.Diff([][]int{{1, 2}}, rec.Calls()); diff != "" {
		t.Fatalf("fetch calls mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_MaxBatch(t *testing.T) {
	rec := &recorder[int, int]{data: map[int]int{1: 1, 2: 2, 3: 3, 4: 4, 5: 5}}
	l := New(rec.fetch, Config[int, int]{MaxBatch: 2})
	ctx := context.Background()

	values := l.LoadManyThunk(ctx, []int{1, 2, 3, 4, 5})
	assert.Empty(t, rec.Calls())
	assert.Equal(t, 5, l.Pending())

	l.Dispatch(ctx)
	got, errs := values()
	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, got)

	calls := rec.Calls()
	require.Len(t, calls, 3)
	var all []int
	for _, c := range calls {
		assert.LessOrEqual(t, len(c), 2)
		all = append(all, c...)
	}
	slices.Sort(all)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, all)
}

func TestLoad_WaitDispatchesWithoutExplicitCall(t *testing.T) {
	rec := &recorder[int, string]{data: map[int]string{1: "a", 2: "b"}}
	l := New(rec.fetch, Config[int, string]{Wait: 5 * time.Millisecond})
	ctx := context.Background()

	_ = l.LoadThunk(ctx, 1)
	_ = l.LoadThunk(ctx, 2)

	require.Eventually(t, func() bool { return len(rec.Calls()) == 1 }, time.Second, time.Millisecond)
	assert.ElementsMatch(t, []int{1, 2}, rec.Calls()[0])
}

func TestLoadMany(t *testing.T) {
	rec := &recorder[int, string]{data: map[int]string{1: "a", 3: "c"}}
	l := New(rec.fetch, Config[int, string]{})

	values, errs := l.LoadMany(context.Background(), []int{3, 1, 2, 3})
	assert.Equal(t, []string{"c", "a", "", "c"}, values)
	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	assert.True(t, IsNotFound(errs[2]))
	assert.NoError(t, errs[3])
	assert.Len(t, rec.Calls(), 1)
}

func TestDispatch_CancelledContextDiscards(t *testing.T) {
	rec := &recorder[int, string]{data: map[int]string{1: "a"}}
	l := New(rec.fetch, Config[int, string]{})

	ctx, cancel := context.WithCancel(context.Background())
	thunk := l.LoadThunk(ctx, 1)
	cancel()
	l.Dispatch(ctx)

	_, err := thunk()
	assert.ErrorIs(t, err, ErrDiscarded)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.Calls())

	v, err := l.Load(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "a", v)
}

func TestDiscard(t *testing.T) {
	rec := &recorder[int, string]{data: map[int]string{1: "a"}}
	l := New(rec.fetch, Config[int, string]{})
	ctx := context.Background()

	thunk := l.LoadThunk(ctx, 1)
	l.Discard()

	_, err := thunk()
	assert.ErrorIs(t, err, ErrDiscarded)
	assert.Empty(t, rec.Calls())
	assert.Zero(t, l.Pending())
}

func TestPrimeAndClear(t *testing.T) {
	rec := &recorder[int, string]{data: map[int]string{1: "fetched"}}
	l := New(rec.fetch, Config[int, string]{})
	ctx := context.Background()

	assert.True(t, l.Prime(1, "primed"))
	assert.False(t, l.Prime(1, "again"))
	v, err := l.Load(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "primed", v)
	assert.Empty(t, rec.Calls())

	l.ClearAll()
	v, err = l.Load(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "fetched", v)
}

func TestLoad_ConcurrentCallers(t *testing.T) {
	rec := &recorder[int, int]{data: map[int]int{}}
	for i := 1; i <= 50; i++ {
		rec.data[i] = i * 10
	}
	l := New(rec.fetch, Config[int, int]{})
	ctx := context.Background()

	thunks := make([]Thunk[int], 100)
	var wg sync.WaitGroup
	for i := range thunks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			thunks[i] = l.LoadThunk(ctx, i%50+1)
		}()
	}
	wg.Wait()
	l.Dispatch(ctx)

	for i, thunk := range thunks {
		v, err := thunk()
		require.NoError(t, err)
		assert.Equal(t, (i%50+1)*10, v)
	}
	calls := rec.Calls()
	require.Len(t, calls, 1)
	assert.Len(t, calls[0], 50)
}

type recordingHook struct {
	mu     sync.Mutex
	before []BatchInfo
	after  []BatchInfo
}

func (h *recordingHook) BeforeBatch(_ context.Context, info BatchInfo) {
	h.mu.Lock()
	h.before = append(h.before, info)
	h.mu.Unlock()
}

func (h *recordingHook) AfterBatch(_ context.Context, info BatchInfo) {
	h.mu.Lock()
	h.after = append(h.after, info)
	h.mu.Unlock()
}

func TestHooks(t *testing.T) {
	rec := &recorder[int, string]{data: map[int]string{1: "a"}}
	hook := &recordingHook{}
	l := New(rec.fetch, Config[int, string]{Name: "pages", Hooks: []Hook{hook}})

	_, _ = l.LoadMany(context.Background(), []int{1, 2})

	require.Len(t, hook.before, 1)
	require.Len(t, hook.after, 1)
	assert.Equal(t, hook.before[0].ID, hook.after[0].ID)
	assert.Equal(t, "pages", hook.after[0].Loader)
	assert.Equal(t, 2, hook.after[0].Keys)
	assert.Equal(t, 1, hook.after[0].NotFound)
	assert.NoError(t, hook.after[0].Err)
}
