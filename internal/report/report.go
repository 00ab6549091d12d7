// Package report renders verse timing tables as charts: an HTML bar chart
// (go-echarts) and a PNG timeline (gonum/plot) comparing each verse's
// recited duration with how long its highlight stays up.
package report

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"path/filepath"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/tilawah/versesync/internal/fsutil"
	"github.com/tilawah/versesync/internal/highlight"
	"github.com/tilawah/versesync/internal/security"
	"github.com/tilawah/versesync/internal/timing"
	"github.com/tilawah/versesync/internal/units"
)

// ErrNoVerses is returned when there is nothing to chart.
var ErrNoVerses = errors.New("report: no verses")

// Row is one verse of a report.
type Row struct {
	Verse    int     `json:"verse"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
	Display  float64 `json:"display"` // highlight seconds
}

// Rows computes the report rows for tbl under the given display bands.
func Rows(tbl *timing.Table, bands highlight.Bands) []Row {
	rows := make([]Row, 0, tbl.Len())
	for _, v := range tbl.Intervals() {
		rows = append(rows, Row{
			Verse:    v.Verse,
			Start:    v.Start,
			End:      v.End,
			Duration: v.Duration(),
			Display:  bands.DisplaySeconds(v.Duration()),
		})
	}
	return rows
}

// WriteDurationChart renders an HTML page with recited and display
// duration per verse.
func WriteDurationChart(w io.Writer, key timing.Key, rows []Row) error {
	if len(rows) == 0 {
		return ErrNoVerses
	}

	x := make([]string, 0, len(rows))
	recited := make([]opts.BarData, 0, len(rows))
	display := make([]opts.BarData, 0, len(rows))
	for _, r := range rows {
		x = append(x, strconv.Itoa(r.Verse))
		recited = append(recited, opts.BarData{Value: round3(r.Duration)})
		display = append(display, opts.BarData{Value: round3(r.Display)})
	}

	last := rows[len(rows)-1]
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Verse timing", Width: "100%", Height: "640px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Surah %d, %s", key.Surah, key.Reciter),
			Subtitle: fmt.Sprintf("verses=%d length=%s", len(rows), units.FormatClock(last.End)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Verse", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Seconds", NameLocation: "middle", NameGap: 30}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)
	bar.SetXAxis(x).
		AddSeries("recited", recited).
		AddSeries("highlight", display)

	page := components.NewPage()
	page.AddCharts(bar)
	return page.Render(w)
}

// WriteTimelinePlot renders a PNG with verse and display duration against
// the verse start time.
func WriteTimelinePlot(w io.Writer, key timing.Key, rows []Row) error {
	if len(rows) == 0 {
		return ErrNoVerses
	}

	recited := make(plotter.XYs, 0, len(rows))
	display := make(plotter.XYs, 0, len(rows))
	for _, r := range rows {
		recited = append(recited, plotter.XY{X: r.Start, Y: r.Duration})
		display = append(display, plotter.XY{X: r.Start, Y: r.Display})
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Surah %d (%s)", key.Surah, key.Reciter)
	p.X.Label.Text = "Verse start (s)"
	p.Y.Label.Text = "Seconds"
	p.Add(plotter.NewGrid())

	recitedLine, err := plotter.NewLine(recited)
	if err != nil {
		return fmt.Errorf("recited line: %w", err)
	}
	recitedLine.Width = vg.Points(1)
	recitedLine.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}

	displayLine, err := plotter.NewLine(display)
	if err != nil {
		return fmt.Errorf("display line: %w", err)
	}
	displayLine.Width = vg.Points(1)
	displayLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	displayLine.Color = color.RGBA{R: 255, G: 127, B: 14, A: 255}

	p.Add(recitedLine, displayLine)
	p.Legend.Add("recited", recitedLine)
	p.Legend.Add("highlight", displayLine)
	p.Legend.Top = true

	wt, err := p.WriterTo(14*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("plot writer: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// WriteFiles writes both charts for tbl into dir and returns their paths.
func WriteFiles(fsys fsutil.FileSystem, dir string, tbl *timing.Table, bands highlight.Bands) ([]string, error) {
	rows := Rows(tbl, bands)
	if len(rows) == 0 {
		return nil, ErrNoVerses
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	key := tbl.Key()
	base := filepath.Join(dir, fmt.Sprintf("%d_%s", key.Surah, security.SanitizeFilename(key.Reciter)))
	outputs := []struct {
		path  string
		write func(io.Writer, timing.Key, []Row) error
	}{
		{base + "_durations.html", WriteDurationChart},
		{base + "_timeline.png", WriteTimelinePlot},
	}

	paths := make([]string, 0, len(outputs))
	for _, o := range outputs {
		if err := writeFile(fsys, o.path, func(w io.Writer) error { return o.write(w, key, rows) }); err != nil {
			return paths, err
		}
		paths = append(paths, o.path)
	}
	return paths, nil
}

func writeFile(fsys fsutil.FileSystem, path string, write func(io.Writer) error) error {
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func round3(f float64) float64 {
	v, _ := strconv.ParseFloat(strconv.FormatFloat(f, 'f', 3, 64), 64)
	return v
}
