// Package ledgerapi exposes ledger import, search, wipe and health over HTTP.
package ledgerapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/sin100007-pixel/customer-qr-login/api"
	"github.com/sin100007-pixel/customer-qr-login/internal/ingest"
	"github.com/sin100007-pixel/customer-qr-login/internal/ledger"
)

// Importer runs one upload through the ingestion pipeline.
type Importer interface {
	Run(ctx context.Context, up ingest.Upload) (ingest.Summary, error)
}

// Store is the read and admin side of a ledger backend.
type Store interface {
	Search(ctx context.Context, f ledger.SearchFilter) (ledger.SearchResult, error)
	Wipe(ctx context.Context, req ledger.WipeRequest) (int64, error)
	Ping(ctx context.Context) error
}

// Deps wires the handlers.
type Deps struct {
	Importer   Importer
	Store      Store
	AdminToken string
	Log        zerolog.Logger
}

// Routes mounts the ledger endpoints.
func Routes(d Deps) api.Mount {
	return func(r *mux.Router) {
		r.HandleFunc("/api/ledger-import", ImportHandler(d.Importer, d.Log)).Methods(http.MethodPost)
		r.HandleFunc("/api/ledger-search", SearchHandler(d.Store)).Methods(http.MethodGet)
		r.Handle("/api/ledger-clear", api.RequireAdminToken(d.AdminToken, ClearHandler(d.Store, d.Log))).Methods(http.MethodPost)
		r.HandleFunc("/api/health", HealthHandler(d.Store)).Methods(http.MethodGet)
	}
}
