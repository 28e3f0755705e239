package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPath(t *testing.T) {
	p := Path{"pages", "edges", 0, "node"}
	assert.Equal(t, "pages.edges[0].node", p.String())
	assert.Equal(t, "[2].title", Path{2, "title"}.String())

	assert.True(t, p.HasPrefix(Path{"pages", "edges"}))
	assert.True(t, p.HasPrefix(nil))
	assert.True(t, p.HasPrefix(p))
	assert.False(t, p.HasPrefix(Path{"pages", "edges", 1}))
	assert.False(t, Path{"pages"}.HasPrefix(p))

	base := make(Path, 2, 8)
	copy(base, Path{"page", "attributes"})
	a, b := base.With(0), base.With(1)
	assert.Equal(t, Path{"page", "attributes", 0}, a)
	assert.Equal(t, Path{"page", "attributes", 1}, b)
}
