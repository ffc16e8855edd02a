package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-insights/internal/api/middleware"
	"github.com/dvloznov/finance-insights/internal/insights"
	"github.com/dvloznov/finance-insights/internal/jobs"
	"github.com/dvloznov/finance-insights/internal/tools"
)

// Deps are the services the HTTP API is built on.
type Deps struct {
	Service   *insights.Service
	Registry  *tools.Registry
	Publisher jobs.Publisher
	JobStore  jobs.JobStore
	ImportDir string // local CSV imports are confined to this directory
	Log       zerolog.Logger
}

// NewRouter registers every endpoint and wraps the mux in the standard
// middleware chain.
func NewRouter(d Deps) http.Handler {
	toolsHandler := NewToolsHandler(d.Registry)
	usersHandler := NewUsersHandler(d.Service)
	importsHandler := NewImportsHandler(d.Publisher, d.JobStore, d.ImportDir, d.Log)

	mux := http.NewServeMux()

	// Tools endpoints
	mux.HandleFunc("GET /api/tools", toolsHandler.ListTools)
	mux.HandleFunc("POST /api/tools/call", toolsHandler.CallTool)

	// User endpoints
	mux.HandleFunc("GET /api/users/{id}/transactions", func(w http.ResponseWriter, r *http.Request) {
		usersHandler.ListTransactions(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("GET /api/users/{id}/insights", func(w http.ResponseWriter, r *http.Request) {
		usersHandler.GetInsights(w, r, r.PathValue("id"))
	})

	// Import endpoints
	mux.HandleFunc("GET /api/imports", importsHandler.ListImports)
	mux.HandleFunc("POST /api/imports", importsHandler.EnqueueImport)
	mux.HandleFunc("GET /api/imports/{id}", func(w http.ResponseWriter, r *http.Request) {
		importsHandler.GetImport(w, r, r.PathValue("id"))
	})

	mux.HandleFunc("GET /health", Health)

	return middleware.Chain(mux,
		middleware.RequestID(d.Log),
		middleware.Recovery,
		middleware.Logger,
		middleware.CORS,
	)
}
