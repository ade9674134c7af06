package render

import (
	"bytes"
	"fmt"

	"github.com/nextstrain/forecasts-ncov/internal/domain"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Panel tiles one small multiple per drawable location into a single PNG at
// the given resolution. Locations with nothing to draw are left out.
func Panel(data *domain.ModelData, g Graph, res Resolution) ([]byte, error) {
	if _, err := ParseGraph(string(g)); err != nil {
		return nil, err
	}
	if res.Columns <= 0 || res.Width <= 0 {
		return nil, fmt.Errorf("invalid resolution %+v", res)
	}

	var locs []string
	for _, loc := range data.Locations {
		if drawable(data, loc, g) {
			locs = append(locs, loc)
		}
	}
	if len(locs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, g)
	}

	cols := res.Columns
	rows := (len(locs) + cols - 1) / cols
	tileH := res.Width / cols * 3 / 4

	plots := make([][]*plot.Plot, rows)
	for j := range plots {
		plots[j] = make([]*plot.Plot, cols)
		for i := range plots[j] {
			blank := plot.New()
			blank.HideAxes()
			plots[j][i] = blank
		}
	}
	for n, loc := range locs {
		p, err := newPlot(data, loc, g, false)
		if err != nil {
			return nil, err
		}
		plots[n/cols][n%cols] = p
	}

	img := vgimg.New(pixels(res.Width), pixels(rows*tileH))
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      rows,
		Cols:      cols,
		PadX:      vg.Millimeter,
		PadY:      vg.Millimeter,
		PadTop:    vg.Points(2),
		PadBottom: vg.Points(2),
		PadLeft:   vg.Points(2),
		PadRight:  vg.Points(2),
	}

	canvases := plot.Align(plots, tiles, dc)
	for j := range plots {
		for i := range plots[j] {
			plots[j][i].Draw(canvases[j][i])
		}
	}

	var buf bytes.Buffer
	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode %s panel: %w", g, err)
	}
	return buf.Bytes(), nil
}

// PanelFileName is the file a panel is exported to.
func PanelFileName(model string, g Graph, res Resolution) string {
	return fmt.Sprintf("%s_%sPanel_%s.png", model, g, res.Name)
}
