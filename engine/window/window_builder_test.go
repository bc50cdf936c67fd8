package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func defaults() *engineWindow {
	return &engineWindow{maxWidth: 1600, maxHeight: 1200, minWidth: 600, minHeight: 200, width: 1280, height: 720}
}

func TestSizeOptions(t *testing.T) {
	w := defaults()
	for _, opt := range []WindowBuilderOption{
		WithMinWidth(640), WithMaxWidth(2560), WithMinHeight(480), WithMaxHeight(1440),
		WithWidth(2000), WithHeight(300),
	} {
		opt(w)
	}
	w.clampSize()
	assert.Equal(t, [4]int{640, 2560, 480, 1440}, [4]int{w.minWidth, w.maxWidth, w.minHeight, w.maxHeight})
	assert.Equal(t, 2000, w.width)
	assert.Equal(t, 480, w.height, "initial height is raised to the minimum")
}

func TestSizeOptions_ZeroKeepsDefaults(t *testing.T) {
	w := defaults()
	for _, opt := range []WindowBuilderOption{WithMinWidth(0), WithMaxWidth(0), WithMinHeight(0), WithMaxHeight(0)} {
		opt(w)
	}
	w.clampSize()
	assert.Equal(t, [4]int{600, 1600, 200, 1200}, [4]int{w.minWidth, w.maxWidth, w.minHeight, w.maxHeight})
	assert.Equal(t, 1280, w.width)
}

func TestClampSize_CrossedLimits(t *testing.T) {
	w := defaults()
	WithMinWidth(2000)(w)
	w.clampSize()
	assert.Equal(t, 2000, w.maxWidth)
	assert.Equal(t, 2000, w.width)
}
