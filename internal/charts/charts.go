// Package charts renders diagnostic visualisations of device state
// (spectrum, feature vector, classification history) as standalone
// go-echarts HTML pages.
package charts

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/senseedge/internal/db"
	"github.com/banshee-data/senseedge/internal/report"
	"github.com/banshee-data/senseedge/internal/rtl/core"
	"github.com/banshee-data/senseedge/internal/rtl/feature"
	"github.com/banshee-data/senseedge/internal/rtl/fft"
)

// featureSlotNames label the fixed feature vector layout.
var featureSlotNames = [feature.Count]string{
	"band 1-4", "band 5-10", "band 11-20", "band 21-31",
	"peak bin", "peak mag", "centroid", "total",
}

// SpectrumBar builds a bar chart of the 32 magnitude bins.
func SpectrumBar(snap core.Snapshot) *charts.Bar {
	bins := make([]string, fft.Bins)
	data := make([]opts.BarData, fft.Bins)
	for i := 0; i < fft.Bins; i++ {
		bins[i] = fmt.Sprintf("%d", i)
		data[i] = opts.BarData{Value: snap.Bins[i]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "SenseEdge Spectrum", Theme: "dark"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Vibration Spectrum",
			Subtitle: fmt.Sprintf("tick=%d batches=%d", snap.Tick, snap.Batches),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "bin"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "magnitude"}),
	)
	bar.SetXAxis(bins)
	bar.AddSeries("magnitude", data)
	return bar
}

// FeatureBar builds a bar chart of the 8-slot feature vector.
func FeatureBar(snap core.Snapshot) *charts.Bar {
	names := make([]string, feature.Count)
	data := make([]opts.BarData, feature.Count)
	for i := 0; i < feature.Count; i++ {
		names[i] = featureSlotNames[i]
		data[i] = opts.BarData{Value: snap.Features[i]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "SenseEdge Features", Theme: "dark"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Feature Vector",
			Subtitle: fmt.Sprintf("class=%s conf=%d", report.ClassName(snap.ClassID), snap.Confidence),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "value", Max: 255}),
	)
	bar.SetXAxis(names)
	bar.AddSeries("features", data)
	return bar
}

// ConfidenceLine builds a confidence-over-time line from stored
// classification events. Events are plotted in the order given.
func ConfidenceLine(events []db.Classification) *charts.Line {
	ticks := make([]string, len(events))
	conf := make([]opts.LineData, len(events))
	for i, ev := range events {
		ticks[i] = fmt.Sprintf("%d", ev.Tick)
		conf[i] = opts.LineData{Value: ev.Confidence, Name: ev.ClassName}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "SenseEdge Confidence", Theme: "dark"}),
		charts.WithTitleOpts(opts.Title{Title: "Classification Confidence"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "tick"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "confidence", Max: 255}),
	)
	line.SetXAxis(ticks)
	line.AddSeries("confidence", conf)
	return line
}

// RenderDashboard writes a single HTML page combining the spectrum,
// feature and confidence charts.
func RenderDashboard(w io.Writer, snap core.Snapshot, events []db.Classification) error {
	page := components.NewPage()
	page.PageTitle = "SenseEdge Dashboard"
	page.AddCharts(SpectrumBar(snap), FeatureBar(snap), ConfidenceLine(events))
	return page.Render(w)
}
