package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/payinsight/internal/config"
	"github.com/leapstack-labs/payinsight/internal/funnel"
	"github.com/leapstack-labs/payinsight/internal/insights"
	"github.com/leapstack-labs/payinsight/internal/metrics"
	"github.com/leapstack-labs/payinsight/internal/pipeline"
	"github.com/leapstack-labs/payinsight/internal/quality"
	"github.com/leapstack-labs/payinsight/internal/report"
	"github.com/leapstack-labs/payinsight/internal/segment"
	"github.com/leapstack-labs/payinsight/pkg/core"
)

func (s *Server) routes(r chi.Router) {
	r.Get("/healthz", s.health)
	r.Get("/report", s.report)

	r.Route("/api", func(r chi.Router) {
		r.Get("/metrics/users", s.userMetrics)
		r.Get("/metrics/transactions", s.transactionMetrics)
		r.Get("/funnel", s.funnel)
		r.Get("/engagement", s.engagement)
		r.Get("/segments", s.segments)
		r.Get("/segments/users/{id}", s.userSegment)
		r.Get("/insights", s.insights)
		r.Get("/recommendations", s.recommendations)
		r.Get("/alerts", s.alerts)
		r.Get("/quality", s.quality)
		r.Get("/events", s.events)
		if s.cfg.Store != nil {
			r.Get("/runs", s.listRuns)
			r.Get("/runs/{id}", s.getRun)
		}
	})
}

// analysisFor returns the analysis config for one request, with the
// reference instant pinned. ?as_of= overrides the configured instant.
func (s *Server) analysisFor(r *http.Request) (core.AnalysisConfig, error) {
	cfg := s.cfg.Analysis
	if v := r.URL.Query().Get("as_of"); v != "" {
		asOf, err := config.ParseAsOf(v)
		if err != nil {
			return cfg, err
		}
		cfg.AsOf = asOf
	}
	if cfg.AsOf.IsZero() {
		cfg.AsOf = time.Now()
	}
	return cfg, nil
}

// compute runs fn against the current dataset and writes its result as JSON.
func (s *Server) compute(w http.ResponseWriter, r *http.Request, fn func(*core.Dataset, core.AnalysisConfig) any) {
	cfg, err := s.analysisFor(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ds, _ := s.dataset()
	writeJSON(w, http.StatusOK, fn(ds, cfg))
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	ds, loadedAt := s.dataset()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"loaded_at":    loadedAt.UTC(),
		"users":        len(ds.Users()),
		"transactions": len(ds.Transactions()),
		"activity":     len(ds.Activity()),
	})
}

func (s *Server) userMetrics(w http.ResponseWriter, r *http.Request) {
	s.compute(w, r, func(ds *core.Dataset, cfg core.AnalysisConfig) any {
		return metrics.Users(ds, cfg)
	})
}

func (s *Server) transactionMetrics(w http.ResponseWriter, r *http.Request) {
	s.compute(w, r, func(ds *core.Dataset, cfg core.AnalysisConfig) any {
		return metrics.Transactions(ds, cfg)
	})
}

func (s *Server) funnel(w http.ResponseWriter, r *http.Request) {
	s.compute(w, r, func(ds *core.Dataset, cfg core.AnalysisConfig) any {
		f := funnel.Compute(ds, cfg)
		return map[string]any{
			"funnel":    f,
			"stages":    f.Stages(),
			"redundant": f.Redundant(),
		}
	})
}

func (s *Server) engagement(w http.ResponseWriter, r *http.Request) {
	s.compute(w, r, func(ds *core.Dataset, cfg core.AnalysisConfig) any {
		return funnel.ComputeEngagement(ds, cfg)
	})
}

func (s *Server) segments(w http.ResponseWriter, r *http.Request) {
	s.compute(w, r, func(ds *core.Dataset, cfg core.AnalysisConfig) any {
		return map[string]any{
			"activity_segments": segment.Activity(ds, cfg),
			"value_segments":    segment.Value(ds, cfg),
			"value_cuts":        segment.CutsFor(segment.UserRevenue(ds.Transactions()), cfg),
		}
	})
}

func (s *Server) userSegment(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.analysisFor(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id := chi.URLParam(r, "id")
	ds, _ := s.dataset()
	for _, u := range segment.Users(ds, cfg) {
		if u.UserID == id {
			writeJSON(w, http.StatusOK, u)
			return
		}
	}
	writeError(w, http.StatusNotFound, fmt.Errorf("user not found: %s", id))
}

func (s *Server) insights(w http.ResponseWriter, r *http.Request) {
	s.compute(w, r, func(ds *core.Dataset, cfg core.AnalysisConfig) any {
		return insights.New(ds, cfg).All()
	})
}

func (s *Server) recommendations(w http.ResponseWriter, r *http.Request) {
	s.compute(w, r, func(ds *core.Dataset, cfg core.AnalysisConfig) any {
		return insights.New(ds, cfg).Recommendations()
	})
}

func (s *Server) alerts(w http.ResponseWriter, r *http.Request) {
	s.compute(w, r, func(ds *core.Dataset, cfg core.AnalysisConfig) any {
		out := insights.Alerts(metrics.Users(ds, cfg), metrics.Transactions(ds, cfg), cfg)
		if out == nil {
			out = []insights.Alert{}
		}
		return out
	})
}

func (s *Server) quality(w http.ResponseWriter, r *http.Request) {
	s.compute(w, r, func(ds *core.Dataset, _ core.AnalysisConfig) any {
		return quality.Validate(ds)
	})
}

// report renders the executive summary, or the detailed report with
// ?detailed=true. ?format= selects text (default), markdown or json.
func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.analysisFor(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	detailed, _ := strconv.ParseBool(r.URL.Query().Get("detailed"))

	ds, _ := s.dataset()
	res, err := pipeline.Analyze(r.Context(), ds, pipeline.Options{Analysis: cfg, Logger: s.logger})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	switch format {
	case report.FormatJSON:
		w.Header().Set("Content-Type", "application/json")
	case report.FormatMarkdown:
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}

	opts := report.Options{Format: format}
	if detailed {
		err = report.Detailed(w, res, opts)
	} else {
		err = report.ExecutiveSummary(w, res, opts)
	}
	if err != nil {
		s.logger.Error("failed to write report", "error", err)
	}
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = n
	}
	runs, err := s.cfg.Store.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.cfg.Store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// events streams a "reload" server-sent event whenever the dataset changes.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.notifier.subscribe()
	defer s.notifier.unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ch:
			_, loadedAt := s.dataset()
			if _, err := fmt.Fprintf(w, "event: reload\ndata: %s\n\n", loadedAt.UTC().Format(time.RFC3339Nano)); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
