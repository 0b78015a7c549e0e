package chart

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func TestParseColor(t *testing.T) {
	assert.Equal(t, drawing.Color{R: 0xfc, G: 0xff, B: 0x32, A: 0xff}, parseColor("#fcff32ff"))
	assert.Equal(t, drawing.Color{R: 0x00, G: 0x77, B: 0xff, A: 0xff}, parseColor("#0077ff"))
	assert.Equal(t, drawing.Color{R: 0x99, G: 0x99, B: 0x99, A: 0xff}, parseColor("#999"))
	assert.Equal(t, drawing.Color{R: 0x99, G: 0x99, B: 0x99, A: 0xff}, parseColor("not-a-color"))
}

func TestRenderPNG(t *testing.T) {
	for _, kind := range []Kind{KindBar, KindPie, KindPolarArea, KindDoughnut, KindLine} {
		t.Run(string(kind), func(t *testing.T) {
			c := NewDistribution(kind)
			c.ApplyDistribution(CategoryLarge, 3)
			c.ApplyDistribution(CategoryMedium, 6)
			c.ApplyDistribution(CategorySmall, 9)

			var buf bytes.Buffer
			require.NoError(t, RenderPNG(&buf, c.Snapshot(), 480, 320))
			assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
		})
	}
}

func TestRenderCounterBar(t *testing.T) {
	c := NewCounter(KindBar)
	c.ApplyCounter(4)

	var buf bytes.Buffer
	require.NoError(t, RenderPNG(&buf, c.Snapshot(), 320, 240))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
}

func TestRenderNothing(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, RenderPNG(&buf, NewDistribution(KindBar).Snapshot(), 320, 240), ErrNothingToRender)
	assert.ErrorIs(t, RenderPNG(&buf, NewCounter(KindPie).Snapshot(), 320, 240), ErrNothingToRender)
	assert.ErrorIs(t, RenderPNG(&buf, NewCounter(KindDoughnut).Snapshot(), 320, 240), ErrNothingToRender)
	assert.Zero(t, buf.Len())
}

func TestRenderSinglePointLine(t *testing.T) {
	counter := NewCounter(KindLine)
	distribution := NewDistribution(KindLine)
	distribution.ApplyDistribution(CategoryLarge, 4)

	for name, snap := range map[string]Snapshot{
		"counter initial": NewCounter(KindLine).Snapshot(),
		"counter":         func() Snapshot { counter.ApplyCounter(5); return counter.Snapshot() }(),
		"one category":    distribution.Snapshot(),
	} {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, RenderPNG(&buf, snap, 320, 240))
			assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
		})
	}
}
