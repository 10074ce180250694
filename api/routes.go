package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Mount registers a feature's routes on the gateway router.
type Mount func(r *mux.Router)

// NewRouter builds the gateway router with logging and panic recovery.
func NewRouter(log zerolog.Logger, mounts ...Mount) *mux.Router {
	router := mux.NewRouter()
	router.Use(Recoverer(log), RequestLogger(log))
	for _, m := range mounts {
		m(router)
	}
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		RespondWithError(w, http.StatusNotFound, "route not found: "+r.URL.Path)
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		RespondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return router
}
