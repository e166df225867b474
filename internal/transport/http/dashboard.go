package http

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"

	"yacht-twin/monitor/internal/domain"
)

//go:embed dashboard.html
var dashboardHTML string

var dashboardTemplate = template.Must(template.New("dashboard").Parse(dashboardHTML))

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	data := struct {
		Params  domain.Parameters
		Running bool
	}{
		Params:  s.state.Params(),
		Running: s.state.Running(),
	}
	if err := dashboardTemplate.Execute(&buf, data); err != nil {
		s.logger.Error().Err(err).Msg("dashboard render failed")
		writeJSONError(w, http.StatusInternalServerError, "failed to render dashboard")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
