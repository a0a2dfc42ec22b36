package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/ignite/email-validator/internal/domain"
	"github.com/ignite/email-validator/internal/pkg/httputil"
	"github.com/ignite/email-validator/internal/pkg/logger"
	"github.com/ignite/email-validator/internal/service/validation"
)

// Validator is the part of the validation service the handlers call.
type Validator interface {
	Validate(ctx context.Context, address, source string) (domain.Verdict, error)
	ValidateBatch(ctx context.Context, addresses []string, source string) []domain.Verdict
	History(ctx context.Context, email string) ([]domain.ResultLogEntry, error)
}

// ReportArchive stores batch reports.
type ReportArchive interface {
	SaveReport(ctx context.Context, source string, verdicts []domain.Verdict) (string, error)
}

// Handlers contains the validation HTTP handlers
type Handlers struct {
	validator Validator
	archive   ReportArchive
}

// NewHandlers creates a new Handlers instance
func NewHandlers(v Validator) *Handlers {
	return &Handlers{validator: v}
}

// SetArchive enables S3 reports for batch requests.
func (h *Handlers) SetArchive(a ReportArchive) {
	h.archive = a
}

type validateRequest struct {
	Email string `json:"email"`
}

type batchRequest struct {
	Emails []string `json:"emails"`
}

type batchResponse struct {
	Results   []domain.Verdict `json:"results"`
	ReportKey string           `json:"reportKey,omitempty"`
}

type historyResponse struct {
	Email   string                  `json:"email"`
	Results []domain.ResultLogEntry `json:"results"`
}

// ValidateEmail runs one address through the pipeline.
//
//	POST /validate/email {"email": "..."}
func (h *Handlers) ValidateEmail(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		httputil.BadRequest(w, "Email is required")
		return
	}

	verdict, err := h.validator.Validate(r.Context(), req.Email, domain.SourceAPI)
	if err != nil {
		httputil.InternalError(w, "Validation failed", err)
		return
	}
	httputil.OK(w, verdict)
}

// ValidateBatch validates up to validation.MaxBatchSize addresses in order.
//
//	POST /validate/batch {"emails": ["...", ...]}
func (h *Handlers) ValidateBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if len(req.Emails) == 0 {
		httputil.BadRequest(w, validation.ErrBatchEmpty.Error())
		return
	}
	if len(req.Emails) > validation.MaxBatchSize {
		httputil.BadRequest(w, fmt.Sprintf("%s: %d > %d", validation.ErrBatchTooLarge, len(req.Emails), validation.MaxBatchSize))
		return
	}

	resp := batchResponse{
		Results: h.validator.ValidateBatch(r.Context(), req.Emails, domain.SourceAPIBatch),
	}

	if h.archive != nil {
		key, err := h.archive.SaveReport(r.Context(), domain.SourceAPIBatch, resp.Results)
		if err != nil {
			logger.Warn("batch report not archived", "count", len(resp.Results), "error", err)
		} else {
			resp.ReportKey = key
		}
	}

	httputil.OK(w, resp)
}

// History lists stored results for one address, newest first.
//
//	GET /validate/history?email=...
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		httputil.BadRequest(w, "Email is required")
		return
	}

	entries, err := h.validator.History(r.Context(), email)
	if err != nil {
		httputil.InternalError(w, "Failed to fetch history", err)
		return
	}
	if entries == nil {
		entries = []domain.ResultLogEntry{}
	}
	httputil.OK(w, historyResponse{Email: strings.ToLower(email), Results: entries})
}
