package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/YuminosukeSato/salescope/pkg/errors"
)

// Upload lookups.
var (
	ErrUploadNotFound = errors.New("upload not found")
	ErrNotProcessed   = errors.New("upload has not been processed")
)

// エラー種別（RFC 7807のtype）
const (
	TypeValidation    = "/errors/validation"
	TypeNotFound      = "/errors/not-found"
	TypeConflict      = "/errors/conflict"
	TypeTooLarge      = "/errors/payload-too-large"
	TypeTimeout       = "/errors/timeout"
	TypeTraining      = "/errors/model-training"
	TypeInternal      = "/errors/internal"
	TypeUnprocessable = "/errors/unprocessable"
)

// ErrResponse is an RFC 7807 style problem body.
type ErrResponse struct {
	Status    int    `json:"status"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Detail    string `json:"detail"`
	Instance  string `json:"instance"`
	RequestID string `json:"request_id,omitempty"`
}

// Render implements render.Renderer.
func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.Status)
	return nil
}

func newProblem(r *http.Request, status int, typ, title, detail string) *ErrResponse {
	return &ErrResponse{
		Status:    status,
		Type:      typ,
		Title:     title,
		Detail:    detail,
		Instance:  r.URL.Path,
		RequestID: middleware.GetReqID(r.Context()),
	}
}

// problemFor maps the salescope error taxonomy onto HTTP statuses.
func problemFor(r *http.Request, err error) *ErrResponse {
	var (
		maxBytes   *http.MaxBytesError
		validation *errors.ValidationError
		value      *errors.ValueError
		dimension  *errors.DimensionError
		missing    *errors.MissingColumnError
		noCompare  *errors.NoComparisonPerformedError
		training   *errors.ModelTrainingError
	)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return newProblem(r, http.StatusGatewayTimeout, TypeTimeout, "Request Timeout", err.Error())
	case errors.Is(err, ErrUploadNotFound):
		return newProblem(r, http.StatusNotFound, TypeNotFound, "Upload Not Found", err.Error())
	case errors.Is(err, ErrNotProcessed), errors.As(err, &noCompare):
		return newProblem(r, http.StatusConflict, TypeConflict, "Not Processed", err.Error())
	case errors.As(err, &maxBytes):
		return newProblem(r, http.StatusRequestEntityTooLarge, TypeTooLarge, "Payload Too Large", err.Error())
	case errors.As(err, &validation), errors.As(err, &value), errors.As(err, &dimension):
		return newProblem(r, http.StatusBadRequest, TypeValidation, "Invalid Input", err.Error())
	case errors.As(err, &missing):
		return newProblem(r, http.StatusUnprocessableEntity, TypeUnprocessable, "Missing Column", err.Error())
	case errors.As(err, &training):
		return newProblem(r, http.StatusUnprocessableEntity, TypeTraining, "Model Training Failed", err.Error())
	default:
		return newProblem(r, http.StatusInternalServerError, TypeInternal, "Internal Server Error", err.Error())
	}
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	p := problemFor(r, err)
	if p.Status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", err, "http.path", r.URL.Path, "http.status", p.Status)
	} else {
		s.logger.Warn("Request rejected", "http.path", r.URL.Path, "http.status", p.Status, "error", err.Error())
	}
	_ = render.Render(w, r, p)
}
