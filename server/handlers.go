package server

import (
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/spf13/cast"

	"github.com/YuminosukeSato/salescope/chart"
	"github.com/YuminosukeSato/salescope/compare"
	"github.com/YuminosukeSato/salescope/features"
	"github.com/YuminosukeSato/salescope/pipeline"
	"github.com/YuminosukeSato/salescope/pkg/errors"
	"github.com/YuminosukeSato/salescope/pkg/log"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, HealthResponse{Status: "ok", Timestamp: time.Now(), Service: "salescope"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.Server.MaxUploadBytes
	if r.ContentLength > limit {
		s.renderError(w, r, &http.MaxBytesError{Limit: limit})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			s.renderError(w, r, err)
			return
		}
		s.renderError(w, r, errors.NewValidationError("file", "multipart form expected", err.Error()))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.renderError(w, r, errors.NewValidationError("file", "form field is required", nil))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.renderError(w, r, errors.Wrap(err, "failed to read upload"))
		return
	}
	up, err := s.store.Add(header.Filename, data)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	s.logger.Info("File uploaded",
		log.RunIDKey, up.ID,
		log.SamplesKey, up.Rows,
		log.ColumnsKey, up.Columns,
	)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, up)
}

// ProcessResponse is the body of POST /process/{id}.
type ProcessResponse struct {
	FileID          string          `json:"file_id"`
	RunID           string          `json:"run_id"`
	Rows            int             `json:"rows"`
	FeatureNames    []string        `json:"feature_names"`
	Target          string          `json:"target,omitempty"`
	DerivedColumns  []string        `json:"derived_columns"`
	Engineered      []string        `json:"engineered_columns"`
	Imputed         map[string]int  `json:"imputed"`
	Report          *compare.Report `json:"report,omitempty"`
	DurationSeconds float64         `json:"duration_seconds"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	up, err := s.store.Get(id)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	run, err := s.pipeline.Run(r.Context(), up.table)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	if run.Compared() {
		if err := run.Save(filepath.Join(s.cfg.Paths.ModelDir, id)); err != nil {
			s.renderError(w, r, err)
			return
		}
	}
	s.store.SetRun(id, run)

	render.JSON(w, r, ProcessResponse{
		FileID:          id,
		RunID:           run.ID,
		Rows:            run.Projection.X.NumRows(),
		FeatureNames:    run.Projection.FeatureNames,
		Target:          run.Projection.Target,
		DerivedColumns:  run.Cleaned.Derived,
		Engineered:      run.Engineered.Added,
		Imputed:         run.Cleaned.Imputed,
		Report:          run.Report,
		DurationSeconds: run.Duration.Seconds(),
	})
}

// ForecastResponse is the body of GET /forecast/{id}.
type ForecastResponse struct {
	FileID    string                   `json:"file_id"`
	BestModel string                   `json:"best_model"`
	Points    []pipeline.ForecastPoint `json:"points"`
	Daily     []features.DailySales    `json:"daily"`
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.store.Run(id)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	if !run.Compared() {
		s.renderError(w, r, errors.NewNoComparisonPerformedError("forecast"))
		return
	}
	render.JSON(w, r, ForecastResponse{
		FileID:    id,
		BestModel: run.Report.BestModel.Name,
		Points:    run.Forecast,
		Daily:     run.Engineered.Aggregates.Daily,
	})
}

// ProductsResponse is the body of GET /products/{id}.
type ProductsResponse struct {
	FileID        string                       `json:"file_id"`
	ProductColumn string                       `json:"product_column"`
	RevenueColumn string                       `json:"revenue_column"`
	Products      []features.ProductPopularity `json:"products"`
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.store.Run(id)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	limit := pipeline.DefaultTopProducts
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := cast.ToIntE(raw)
		if err != nil || n <= 0 {
			s.renderError(w, r, errors.NewValidationError("limit", "must be a positive integer", raw))
			return
		}
		limit = n
	}

	agg := run.Engineered.Aggregates
	render.JSON(w, r, ProductsResponse{
		FileID:        id,
		ProductColumn: agg.ProductColumn,
		RevenueColumn: agg.RevenueColumn,
		Products:      agg.TopProducts(limit),
	})
}

func (s *Server) handleComparisonChart(w http.ResponseWriter, r *http.Request) {
	run, err := s.comparedRun(r)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	p, err := chart.Comparison(run.Report)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := chart.WritePNG(w, p); err != nil {
		s.logger.Error("Failed to write chart", err, log.RunIDKey, run.ID)
	}
}

func (s *Server) handleForecastChart(w http.ResponseWriter, r *http.Request) {
	run, err := s.comparedRun(r)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	dates, actual, predicted := pipeline.Series(run.Forecast)
	p, err := chart.ActualVsPredicted(dates, actual, predicted)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := chart.WritePNG(w, p); err != nil {
		s.logger.Error("Failed to write chart", err, log.RunIDKey, run.ID)
	}
}

func (s *Server) comparedRun(r *http.Request) (*pipeline.Run, error) {
	run, err := s.store.Run(chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	if !run.Compared() {
		return nil, errors.NewNoComparisonPerformedError("chart")
	}
	return run, nil
}
