package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dpdplabs/pii-scanner/internal/report"
	"go.uber.org/zap"
)

// analyzeRequest is the POST /v1/analyze body.
type analyzeRequest struct {
	Text string `json:"text"`
}

// analyzeResponse carries accepted findings and the audit counts of
// rejected candidates by reason.
type analyzeResponse struct {
	Environment string           `json:"environment,omitempty"`
	Findings    []report.Finding `json:"findings"`
	Rejections  map[string]int   `json:"rejections,omitempty"`
}

// handleAnalyze scans one text unit with the resolved rule set.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.Server.MaxBodyBytes)

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		http.Error(w, `{"error":"text is required"}`, http.StatusBadRequest)
		return
	}

	result := s.scanner.ScanText(req.Text, "", "")

	resp := analyzeResponse{
		Environment: s.scanner.Environment(),
		Findings:    result.Findings,
		Rejections:  result.Rejections,
	}
	if resp.Findings == nil {
		resp.Findings = []report.Finding{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("Failed to encode analyze response", zap.Error(err))
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"name":"pii-scanner","environment":%q,"region":%q}`,
		s.scanner.Environment(), s.scanner.Region())
}
