package presence

import (
	"bytes"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var (
	startColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	endColor   = color.RGBA{R: 255, G: 127, B: 14, A: 255}
)

// Plot renders both signals as a PNG line chart.
func Plot(start, end Signal) ([]byte, error) {
	p := plot.New()
	p.Title.Text = "Marker Presence Timeline"
	p.X.Label.Text = "frame"
	p.Y.Min = -0.1
	p.Y.Max = 1.1

	startLine, err := plotter.NewLine(signalXYs(start))
	if err != nil {
		return nil, fmt.Errorf("start line: %w", err)
	}
	startLine.Color = startColor
	startLine.Width = vg.Points(1)

	endLine, err := plotter.NewLine(signalXYs(end))
	if err != nil {
		return nil, fmt.Errorf("end line: %w", err)
	}
	endLine.Color = endColor
	endLine.Width = vg.Points(1)

	p.Add(startLine, endLine)
	p.Legend.Add("marker-0", startLine)
	p.Legend.Add("marker-1", endLine)
	p.Legend.Top = true

	w, err := p.WriterTo(20*vg.Inch, 3*vg.Inch, "png")
	if err != nil {
		return nil, fmt.Errorf("render plot: %w", err)
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode plot: %w", err)
	}
	return buf.Bytes(), nil
}

func signalXYs(s Signal) plotter.XYs {
	pts := make(plotter.XYs, len(s))
	for i, v := range s {
		pts[i] = plotter.XY{X: float64(i), Y: float64(v)}
	}
	return pts
}
