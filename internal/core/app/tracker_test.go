package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileTracker(t *testing.T) {
	tr := NewFileTracker()
	assert.Equal(t, StateUnknown, tr.State("/p/App.vine.ts"))
	assert.Equal(t, "unknown", tr.State("/p/App.vine.ts").String())

	tr.Track("/p/App.vine.ts", []string{"/p/Counter.vine", "/p/widgets"})
	tr.Track("/p/Other.vine.ts", nil)
	assert.Equal(t, StateTracked, tr.State("/p/App.vine.ts"))
	assert.Equal(t, 2, tr.Len())
	assert.Equal(t, []string{"/p/App.vine.ts", "/p/Other.vine.ts"}, tr.Files())

	assert.Equal(t, []string{"/p/App.vine.ts"}, tr.Waiting("/p/Counter.vine.ts"))
	assert.Equal(t, []string{"/p/App.vine.ts"}, tr.Waiting("/p/widgets/index.ts"))
	assert.Empty(t, tr.Waiting("/p/Counter.ts"))

	// Re-tracking with nothing pending clears the waits.
	tr.Track("/p/App.vine.ts", nil)
	assert.Empty(t, tr.Waiting("/p/Counter.vine.ts"))

	tr.Untrack("/p/App.vine.ts")
	assert.Equal(t, StateUnknown, tr.State("/p/App.vine.ts"))
	assert.Equal(t, 1, tr.Len())
}
