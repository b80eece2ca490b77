package keyregistry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCursorAdvanceWraps(t *testing.T) {
	var c cursor

	seen := make([]int, 0, 6)
	for i := 0; i < 6; i++ {
		seen = append(seen, c.advance(3))
	}

	assert.Equal(t, []int{1, 2, 0, 1, 2, 0}, seen)
}

func TestCursorSeekTo(t *testing.T) {
	var c cursor

	c.seekTo(2)
	assert.Equal(t, 2, c.advance(4))
}

func TestCursorEmptyRing(t *testing.T) {
	var c cursor
	assert.Equal(t, -1, c.advance(0))
	assert.Equal(t, -1, c.peekNext(0))
}
