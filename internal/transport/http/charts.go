package http

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"yacht-twin/monitor/internal/domain"
)

// handleTelemetryChart renders the in-memory history as a standalone
// go-echarts page, for embedding in the dashboard.
func (s *Server) handleTelemetryChart(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := renderTelemetryChart(&buf, s.state.History()); err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func renderTelemetryChart(buf *bytes.Buffer, history []domain.HistoryPoint) error {
	labels := make([]string, len(history))
	rr := make([]opts.LineData, len(history))
	carbon := make([]opts.LineData, len(history))
	speed := make([]opts.LineData, len(history))
	for i, p := range history {
		labels[i] = p.Timestamp.Format("15:04:05")
		rr[i] = opts.LineData{Value: p.Resistance}
		carbon[i] = opts.LineData{Value: p.Carbon}
		speed[i] = opts.LineData{Value: p.Speed}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Hull Telemetry", Width: "900px", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Residuary resistance", Subtitle: fmt.Sprintf("points=%d", len(history))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Rr (kN) / Carbon (kg/h)"}),
	)

	line.SetXAxis(labels).
		AddSeries("Rr", rr).
		AddSeries("Carbon", carbon).
		AddSeries("Fr", speed).
		SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))

	return line.Render(buf)
}
