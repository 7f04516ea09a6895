package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/classify-cli/internal/classifier"
	"github.com/sells-group/classify-cli/internal/config"
	"github.com/sells-group/classify-cli/internal/model"
	"github.com/sells-group/classify-cli/internal/store"
	"github.com/sells-group/classify-cli/internal/taxonomy"
)

// Server exposes job status, results, and hint-driven review over HTTP.
type Server struct {
	store store.Store
	gw    classifier.ModelGateway
	tax   taxonomy.Gateway
	cfg   config.ClassifyConfig
}

// NewServer builds the API server. gw and tax may be nil, in which case
// the review endpoint reports the service as unavailable.
func NewServer(st store.Store, gw classifier.ModelGateway, tax taxonomy.Gateway, cfg config.ClassifyConfig) *Server {
	return &Server{store: st, gw: gw, tax: tax, cfg: cfg}
}

// Router assembles the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", s.handleListJobs)
		r.Route("/{jobID}", func(r chi.Router) {
			r.Get("/", s.handleGetJob)
			r.Get("/results", s.handleGetResults)
			r.Get("/reviews", s.handleListReviews)
			r.Post("/review", s.handleReview)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	filter := store.JobFilter{Limit: 50}
	if v := r.URL.Query().Get("status"); v != "" {
		filter.Status = model.JobStatus(v)
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	jobs, err := s.store.ListJobs(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list jobs failed")
		zap.L().Error("list jobs", zap.Error(err))
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, err := s.store.GetJob(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	stats, err := s.store.GetStats(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load stats failed")
		zap.L().Error("get stats", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Job   *model.Job           `json:"job"`
		Stats *model.StatsSnapshot `json:"stats,omitempty"`
	}{job, stats})
}

func (s *Server) handleGetResults(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if _, err := s.store.GetJob(r.Context(), jobID); err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	results, err := s.store.GetResults(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load results failed")
		zap.L().Error("get results", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if _, err := s.store.GetJob(r.Context(), jobID); err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	items, err := s.store.ListReviews(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load reviews failed")
		zap.L().Error("list reviews", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	if s.gw == nil || s.tax == nil {
		writeError(w, http.StatusServiceUnavailable, "review requires a configured model gateway and taxonomy")
		return
	}

	jobID := chi.URLParam(r, "jobID")
	job, err := s.store.GetJob(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	var reqs []model.ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		writeError(w, http.StatusBadRequest, "body must be a JSON array of {vendor_name, hint}")
		return
	}

	prior, err := s.store.GetResults(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load results failed")
		zap.L().Error("get results", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	vendors, err := s.store.GetVendors(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load vendors failed")
		zap.L().Error("get vendors", zap.String("job_id", jobID), zap.Error(err))
		return
	}

	clCfg := s.cfg
	clCfg.TargetLevel = job.TargetLevel
	engine := classifier.NewEngine(s.gw, s.tax, nil, classifier.NopProgress{}, clCfg)

	items, err := engine.Reclassify(r.Context(), vendors, prior, reqs)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.SaveReviews(r.Context(), jobID, items); err != nil {
		writeError(w, http.StatusInternalServerError, "save reviews failed")
		zap.L().Error("save reviews", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
