// Package server exposes the prediction API over HTTP: batch predictions,
// the by-ID variant backed by the row store, health and Prometheus
// endpoints. Handlers hold their dependencies by injection; there is no
// package-level model state.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"credit-underwriter/internal/errs"
	"credit-underwriter/internal/metrics"
	"credit-underwriter/internal/predict"
	"credit-underwriter/internal/rowstore"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Server serves the prediction API.
type Server struct {
	svc      *predict.Service
	rows     *rowstore.Store
	observer *metrics.Observer
	server   *http.Server
}

// PredictionItem is one row of the response payload, rounded for clients.
type PredictionItem struct {
	Result      string  `json:"result"`
	ProbAccept  float64 `json:"prob_accept"`
	ProbDecline float64 `json:"prob_decline"`
	Entropy     float64 `json:"entropy"`
	Confidence  float64 `json:"confidence"`
}

// PredictionResponse is the batch prediction payload.
type PredictionResponse struct {
	InferenceTimeMs float64          `json:"inference_time_ms"`
	Predictions     []PredictionItem `json:"predictions"`
	Metrics         struct {
		AvgEntropy    float64 `json:"avg_entropy"`
		AvgConfidence float64 `json:"avg_confidence"`
	} `json:"metrics"`
}

// New builds the server. The row store may be nil, in which case the by-ID
// endpoint reports unavailability.
func New(svc *predict.Service, rows *rowstore.Store, observer *metrics.Observer, port int, requestTimeout time.Duration) *Server {
	s := &Server{svc: svc, rows: rows, observer: observer}

	mux := http.NewServeMux()
	mux.HandleFunc("/Prediction", s.handlePredict)
	mux.HandleFunc("/Prediction-by-id", s.handlePredictByID)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  requestTimeout,
		WriteTimeout: requestTimeout,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("starting prediction server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()

	var records []map[string]any
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		s.observer.ObserveFailure()
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}
	if len(records) == 0 {
		s.observer.ObserveFailure()
		http.Error(w, "request batch cannot be empty", http.StatusBadRequest)
		return
	}

	res, err := s.svc.Infer(records)
	if err != nil {
		s.failPredict(w, err)
		return
	}
	s.observer.ObserveBatch(res, time.Since(start))
	writeJSON(w, http.StatusOK, buildResponse(res, time.Since(start)))
}

func (s *Server) handlePredictByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()

	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		s.observer.ObserveFailure()
		http.Error(w, "id must be an integer", http.StatusBadRequest)
		return
	}
	if s.rows == nil {
		http.Error(w, "row store is not configured", http.StatusServiceUnavailable)
		return
	}

	record, err := s.rows.Get(id)
	if errors.Is(err, errs.ErrNotFound) {
		s.observer.ObserveLookupMiss()
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("ID %d not found", id)})
		return
	}
	if err != nil {
		log.Error().Err(err).Int64("id", id).Msg("row lookup failed")
		http.Error(w, "row lookup failed", http.StatusInternalServerError)
		return
	}

	res, err := s.svc.Infer([]map[string]any{record})
	if err != nil {
		s.failPredict(w, err)
		return
	}
	s.observer.ObserveBatch(res, time.Since(start))
	writeJSON(w, http.StatusOK, buildResponse(res, time.Since(start)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// failPredict maps the error taxonomy to HTTP statuses: invalid input is
// the client's problem, everything else is ours.
func (s *Server) failPredict(w http.ResponseWriter, err error) {
	s.observer.ObserveFailure()
	if errors.Is(err, errs.ErrInvalidInput) {
		http.Error(w, fmt.Sprintf("invalid input: %v", err), http.StatusBadRequest)
		return
	}
	log.Error().Err(err).Msg("prediction failed")
	http.Error(w, "prediction failed", http.StatusInternalServerError)
}

func buildResponse(res *predict.BatchResult, elapsed time.Duration) PredictionResponse {
	out := PredictionResponse{
		InferenceTimeMs: math.Round(float64(elapsed.Microseconds())/10) / 100,
		Predictions:     make([]PredictionItem, len(res.Predictions)),
	}
	for i, p := range res.Predictions {
		out.Predictions[i] = PredictionItem{
			Result:      p.Result,
			ProbAccept:  p.ProbAccept,
			ProbDecline: p.ProbDecline,
			Entropy:     round4(p.Entropy),
			Confidence:  round4(p.Confidence),
		}
	}
	out.Metrics.AvgEntropy = res.AvgEntropy
	out.Metrics.AvgConfidence = res.AvgConfidence
	return out
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
