package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-insights/internal/api/middleware"
	"github.com/dvloznov/finance-insights/internal/domain"
	"github.com/dvloznov/finance-insights/internal/insights"
	"github.com/dvloznov/finance-insights/internal/ingest"
	"github.com/dvloznov/finance-insights/internal/jobs"
	"github.com/dvloznov/finance-insights/internal/logger"
	"github.com/dvloznov/finance-insights/internal/tools"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// ToolsHandler exposes the tool registry over HTTP.
type ToolsHandler struct {
	registry *tools.Registry
}

// NewToolsHandler creates a new tools handler.
func NewToolsHandler(registry *tools.Registry) *ToolsHandler {
	return &ToolsHandler{registry: registry}
}

// ListTools handles GET /api/tools
func (h *ToolsHandler) ListTools(w http.ResponseWriter, r *http.Request) {
	list := h.registry.List()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"tools": list,
		"count": len(list),
	})
}

// CallTool handles POST /api/tools/call. The tool's message is returned in
// "content"; an unknown tool is a 404 and bad arguments a 400, both still
// carrying the message.
func (h *ToolsHandler) CallTool(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		middleware.WriteError(w, http.StatusBadRequest, "name is required")
		return
	}

	content, err := h.registry.Call(r.Context(), req.Name, req.Arguments)

	status := http.StatusOK
	var argErr *tools.ArgumentError
	switch {
	case errors.Is(err, tools.ErrUnknownTool):
		status = http.StatusNotFound
	case errors.As(err, &argErr):
		status = http.StatusBadRequest
	}

	middleware.WriteJSON(w, status, map[string]string{
		"tool":    req.Name,
		"content": content,
	})
}

// TransactionView is the JSON form of a stored transaction.
type TransactionView struct {
	ID              int64           `json:"id"`
	UserID          string          `json:"user_id"`
	Date            string          `json:"date"`
	Description     string          `json:"description"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionType string          `json:"transaction_type"`
	Category        string          `json:"category"`
	AccountName     string          `json:"account_name"`
}

func newTransactionView(tx domain.Transaction) TransactionView {
	return TransactionView{
		ID:              tx.ID,
		UserID:          tx.UserID,
		Date:            tx.Date.Format(domain.DateFormat),
		Description:     tx.Description,
		Amount:          tx.Amount,
		TransactionType: string(tx.Type),
		Category:        tx.Category,
		AccountName:     tx.AccountName,
	}
}

// UsersHandler serves per-user transaction data and insights.
type UsersHandler struct {
	svc *insights.Service
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(svc *insights.Service) *UsersHandler {
	return &UsersHandler{svc: svc}
}

// ListTransactions handles GET /api/users/{id}/transactions
func (h *UsersHandler) ListTransactions(w http.ResponseWriter, r *http.Request, userID string) {
	txs, err := h.svc.Transactions(r.Context(), userID)
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to query transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to query transactions")
		return
	}

	// Always an array, never null
	views := make([]TransactionView, 0, len(txs))
	for _, tx := range txs {
		views = append(views, newTransactionView(tx))
	}
	middleware.WriteJSON(w, http.StatusOK, views)
}

// GetInsights handles GET /api/users/{id}/insights
func (h *UsersHandler) GetInsights(w http.ResponseWriter, r *http.Request, userID string) {
	overview, err := h.svc.Overview(r.Context(), userID)
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to compute insights")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to compute insights")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, overview)
}

// ImportsHandler queues CSV imports and reports their progress.
// Local paths are only accepted inside importDir.
type ImportsHandler struct {
	publisher jobs.Publisher
	store     jobs.JobStore
	importDir string
	log       zerolog.Logger
}

// NewImportsHandler creates a new imports handler. An empty importDir
// restricts imports to gs:// objects.
func NewImportsHandler(publisher jobs.Publisher, store jobs.JobStore, importDir string, log zerolog.Logger) *ImportsHandler {
	return &ImportsHandler{
		publisher: publisher,
		store:     store,
		importDir: importDir,
		log:       log,
	}
}

// EnqueueImport handles POST /api/imports
func (h *ImportsHandler) EnqueueImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Source        string `json:"source"`
		DefaultUserID string `json:"default_user_id"`
	}

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Source = strings.TrimSpace(req.Source)
	if req.Source == "" {
		middleware.WriteError(w, http.StatusBadRequest, "source is required")
		return
	}
	if ingest.IsGCSURI(req.Source) {
		if _, _, err := ingest.ParseGCSURI(req.Source); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
	} else {
		resolved, err := ingest.ResolveLocalSource(h.importDir, req.Source)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Source = resolved
	}

	job := &jobs.ImportJob{
		Source:        req.Source,
		DefaultUserID: strings.TrimSpace(req.DefaultUserID),
	}

	// The job outlives the request.
	ctx := logger.WithContext(context.WithoutCancel(r.Context()), h.log)
	if err := h.publisher.PublishImport(ctx, job); err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("Failed to enqueue import job")
		middleware.WriteError(w, http.StatusServiceUnavailable, "Failed to enqueue import job")
		return
	}

	log := logger.FromContext(r.Context())
	log.Info().Str("job_id", job.JobID).Str("source", job.Source).Msg("Import job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"source": job.Source,
		"status": string(job.Status),
	})
}

// GetImport handles GET /api/imports/{id}
func (h *ImportsHandler) GetImport(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if errors.Is(err, jobs.ErrJobNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListImports handles GET /api/imports
func (h *ImportsHandler) ListImports(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		Source: query.Get("source"),
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	list, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"imports": list,
		"count":   len(list),
	})
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}
