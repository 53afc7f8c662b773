package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/ivlev/satwatch/internal/signal"
	"github.com/ivlev/satwatch/internal/store"
)

// RenderChart renders the recorded series of one channel as an HTML
// line chart. A debugging view for runs without the frontend; the raw
// numbers come from the same store the JSON history endpoint reads.
// Query params:
//   - channel: hue, saturation or value (default value)
//   - from/to: frame range, to=-1 means the latest frame
func (h *Handler) RenderChart(c *gin.Context) {
	channel := c.DefaultQuery("channel", "value")
	pick, ok := channelPicker(channel)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown channel"})
		return
	}

	from, to, ok := parseRange(c)
	if !ok {
		return
	}

	records := h.monitor.Store().Range(from, to)
	frames := make([]string, 0, len(records))
	smooth := make([]opts.LineData, 0, len(records))
	deriv1 := make([]opts.LineData, 0, len(records))
	deriv2 := make([]opts.LineData, 0, len(records))
	for _, r := range records {
		s := pick(r)
		frames = append(frames, strconv.Itoa(r.Frame))
		smooth = append(smooth, opts.LineData{Value: s.Smooth})
		deriv1 = append(deriv1, opts.LineData{Value: s.Deriv1})
		deriv2 = append(deriv2, opts.LineData{Value: s.Deriv2})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Saturation Monitor",
			Theme:     "dark",
			Width:     "1200px",
			Height:    "600px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Channel %s relative to baseline", channel),
			Subtitle: fmt.Sprintf("frames=%d", len(records)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	line.SetXAxis(frames).
		AddSeries("smooth", smooth).
		AddSeries("deriv1", deriv1).
		AddSeries("deriv2", deriv2).
		SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(false)}))

	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := line.Render(c.Writer); err != nil {
		h.logger.Errorf("Failed to render chart: %v", err)
	}
}

func channelPicker(channel string) (func(store.Record) signal.Sample, bool) {
	switch channel {
	case "hue":
		return func(r store.Record) signal.Sample { return r.Sample.Hue }, true
	case "saturation":
		return func(r store.Record) signal.Sample { return r.Sample.Saturation }, true
	case "value":
		return func(r store.Record) signal.Sample { return r.Sample.Value }, true
	default:
		return nil, false
	}
}
