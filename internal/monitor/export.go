package monitor

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/klauspost/compress/gzip"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// WriteYODA writes hists in YODA text format.
func WriteYODA(w io.Writer, hists []Hist) error {
	for _, h := range hists {
		var (
			raw []byte
			err error
		)
		switch {
		case h.H1 != nil:
			raw, err = h.H1.MarshalYODA()
		case h.H2 != nil:
			raw, err = h.H2.MarshalYODA()
		default:
			continue
		}
		if err != nil {
			return fmt.Errorf("encode %s: %w", h.Name, err)
		}
		if _, err := w.Write(raw); err != nil {
			return fmt.Errorf("write %s: %w", h.Name, err)
		}
	}
	return nil
}

// WriteYODAFile writes hists to path, gzip compressed when path ends in .gz.
func WriteYODAFile(path string, hists []Hist) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if !strings.HasSuffix(path, ".gz") {
		return WriteYODA(f, hists)
	}
	zw := gzip.NewWriter(f)
	if err := WriteYODA(zw, hists); err != nil {
		return err
	}
	return zw.Close()
}

// RenderPNG draws every 1D histogram into dir as <name>.png and returns
// the files written.
func RenderPNG(dir string, hists []Hist) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create plot dir: %w", err)
	}

	var files []string
	for _, h := range hists {
		if h.H1 == nil {
			continue
		}

		p := plot.New()
		p.Title.Text = h.Name
		p.X.Label.Text = h.Title
		p.Y.Label.Text = "events"

		bins := make([]plotter.HistogramBin, len(h.H1.Binning.Bins))
		for i, b := range h.H1.Binning.Bins {
			bins[i] = plotter.HistogramBin{Min: b.XMin(), Max: b.XMax(), Weight: b.SumW()}
		}
		p.Add(&plotter.Histogram{
			Bins:      bins,
			FillColor: color.RGBA{R: 70, G: 130, B: 180, A: 255},
			LineStyle: plotter.DefaultLineStyle,
		})

		file := filepath.Join(dir, h.Name+".png")
		if err := p.Save(6*vg.Inch, 4*vg.Inch, file); err != nil {
			return files, fmt.Errorf("save %s: %w", file, err)
		}
		files = append(files, file)
	}
	return files, nil
}

// BarChart renders a 1D histogram as an echarts bar chart labelled by
// bin centre.
func BarChart(h Hist) *charts.Bar {
	bins := h.H1.Binning.Bins
	x := make([]string, len(bins))
	y := make([]opts.BarData, len(bins))
	for i, b := range bins {
		x[i] = strconv.FormatFloat(b.XMid(), 'g', 6, 64)
		y[i] = opts.BarData{Value: b.SumW()}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: h.Name, Subtitle: fmt.Sprintf("%s, %d entries", h.Title, h.Entries())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	bar.SetXAxis(x).AddSeries(h.Name, y)
	return bar
}

// RenderHTML writes a page with one bar chart per non-empty 1D histogram.
func RenderHTML(w io.Writer, hists []Hist) error {
	page := components.NewPage()
	for _, h := range hists {
		if h.H1 == nil || h.Entries() == 0 {
			continue
		}
		page.AddCharts(BarChart(h))
	}
	return page.Render(w)
}
