package core

import (
	"encoding/json"
	"net/http"

	"gridpulse/internal/store"
)

// healthResponse is the body of the health endpoint.
type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// handleHealth reports liveness. The API has no hard dependencies beyond
// the artifact directory, and an empty directory is a valid state, so
// health is unconditional.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, healthResponse{
		Status:  "healthy",
		Service: s.Config.Service,
	})
}

// handleCorrelations serves the per-city correlation artifact.
func (s *Server) handleCorrelations(w http.ResponseWriter, r *http.Request) {
	s.serveJSONArtifact(w, r, store.CorrelationsArtifact)
}

// handleSummary serves the summary statistics artifact.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.serveJSONArtifact(w, r, store.SummaryStatsArtifact)
}

// handleQualityReport serves the latest quality report.
func (s *Server) handleQualityReport(w http.ResponseWriter, r *http.Request) {
	s.serveJSONArtifact(w, r, store.QualityReportArtifact)
}

// handleHeatmap serves the heatmap table as CSV.
func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	raw, err := s.Artifacts.ReadArtifact(store.HeatmapArtifact)
	if err != nil {
		Error(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// serveJSONArtifact wraps a JSON artifact in the standard envelope without
// re-decoding it into typed structs.
func (s *Server) serveJSONArtifact(w http.ResponseWriter, r *http.Request, name string) {
	raw, err := s.Artifacts.ReadArtifact(name)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: json.RawMessage(raw)})
}
