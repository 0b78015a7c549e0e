package chart

import (
	"io"
	"strconv"
	"strings"

	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/errors"
	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNothingToRender is returned for snapshots that have no drawable data.
var ErrNothingToRender = errors.New().WithMessage(errors.ErrRenderChart, "nothing to render")

// RenderPNG draws snap as a PNG image of the given size.
func RenderPNG(w io.Writer, snap Snapshot, width, height int) error {
	if len(snap.Data) == 0 {
		return ErrNothingToRender
	}

	var err error
	switch snap.Kind {
	case KindBar:
		err = renderBar(w, snap, width, height)
	case KindPie, KindPolarArea:
		if sum(snap.Data) <= 0 {
			return ErrNothingToRender
		}
		pie := gochart.PieChart{Width: width, Height: height, Values: values(snap)}
		err = pie.Render(gochart.PNG, w)
	case KindDoughnut:
		if sum(snap.Data) <= 0 {
			return ErrNothingToRender
		}
		donut := gochart.DonutChart{Width: width, Height: height, Values: values(snap)}
		err = donut.Render(gochart.PNG, w)
	case KindLine:
		err = renderLine(w, snap, width, height)
	default:
		return errors.New().WithData(errors.ErrInvalidChartKind, snap.Kind)
	}

	if err != nil {
		return errors.New().Wrap(errors.ErrRenderChart, err)
	}

	return nil
}

func renderBar(w io.Writer, snap Snapshot, width, height int) error {
	bars := values(snap)
	barWidth := width / (2*len(bars) + 1)
	if barWidth < 10 {
		barWidth = 10
	}

	bc := gochart.BarChart{
		Width:    width,
		Height:   height,
		BarWidth: barWidth,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 24},
		},
		YAxis: gochart.YAxis{
			Range: &gochart.ContinuousRange{Min: 0, Max: axisMax(snap.Data)},
		},
		Bars: bars,
	}

	return bc.Render(gochart.PNG, w)
}

func renderLine(w io.Writer, snap Snapshot, width, height int) error {
	ys := append([]float64{}, snap.Data...)
	xs := make([]float64, len(ys))
	ticks := make([]gochart.Tick, len(ys))
	for i := range ys {
		xs[i] = float64(i)
		label := ""
		if i < len(snap.Labels) {
			label = snap.Labels[i]
		}
		ticks[i] = gochart.Tick{Value: float64(i), Label: label}
	}

	// go-chart derives the x range from the ticks and rejects a zero-width
	// range, so a single point is drawn as a flat segment.
	if len(ys) == 1 {
		xs = append(xs, 1)
		ys = append(ys, ys[0])
		ticks = append(ticks, gochart.Tick{Value: 1})
	}

	stroke := gochart.ColorBlue
	if len(snap.Colors) > 0 {
		stroke = parseColor(snap.Colors[0])
	}

	ch := gochart.Chart{
		Width:  width,
		Height: height,
		XAxis: gochart.XAxis{
			Range: &gochart.ContinuousRange{Min: 0, Max: xs[len(xs)-1]},
			Ticks: ticks,
		},
		YAxis: gochart.YAxis{
			Range: &gochart.ContinuousRange{Min: 0, Max: axisMax(snap.Data)},
		},
		Series: []gochart.Series{
			gochart.ContinuousSeries{
				Name:    snap.Dataset,
				XValues: xs,
				YValues: ys,
				Style: gochart.Style{
					StrokeColor: stroke,
					StrokeWidth: 2,
					DotColor:    stroke,
					DotWidth:    4,
				},
			},
		},
	}

	return ch.Render(gochart.PNG, w)
}

func values(snap Snapshot) []gochart.Value {
	vals := make([]gochart.Value, len(snap.Data))
	for i, v := range snap.Data {
		label := ""
		if i < len(snap.Labels) {
			label = snap.Labels[i]
		}
		color := DefaultColor
		if i < len(snap.Colors) {
			color = snap.Colors[i]
		}
		c := parseColor(color)
		vals[i] = gochart.Value{
			Label: label,
			Value: v,
			Style: gochart.Style{FillColor: c, StrokeColor: c},
		}
	}

	return vals
}

// parseColor accepts #rgb, #rrggbb and #rrggbbaa. Anything else renders gray.
func parseColor(hex string) drawing.Color {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return drawing.Color{R: 0x99, G: 0x99, B: 0x99, A: 0xff}
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return drawing.Color{R: 0x99, G: 0x99, B: 0x99, A: 0xff}
	}

	return drawing.Color{
		R: uint8(v >> 24),
		G: uint8(v >> 16),
		B: uint8(v >> 8),
		A: uint8(v),
	}
}

func sum(data []float64) float64 {
	var total float64
	for _, v := range data {
		total += v
	}

	return total
}

func axisMax(data []float64) float64 {
	m := 1.0
	for _, v := range data {
		if v > m {
			m = v
		}
	}

	return m
}
