package certify

import (
	"net/http"

	"github.com/gorilla/mux"

	"ExpenseCertify/api"
	"ExpenseCertify/api/constants"
)

// NewRouter mounts every certification route.
func NewRouter(h *Handler) *mux.Router {
	router := mux.NewRouter()
	router.Use(api.RequestContext, api.Recoverer, api.AccessLog)
	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	router.HandleFunc("/certify/health", h.Health).Methods(http.MethodGet)

	c := router.PathPrefix("/certify").Subrouter()
	c.HandleFunc("/runs", h.UploadRun).Methods(http.MethodPost)
	c.HandleFunc("/runs", h.ListRuns).Methods(http.MethodGet)
	c.HandleFunc("/runs/{id}", h.GetRun).Methods(http.MethodGet)
	c.HandleFunc("/runs/{id}", h.DeleteRun).Methods(http.MethodDelete)
	c.HandleFunc("/runs/{id}/exceptions", h.RunExceptions).Methods(http.MethodGet)
	c.HandleFunc("/runs/{id}/departments", h.RunDepartments).Methods(http.MethodGet)
	c.HandleFunc("/runs/{id}/users", h.RunUsers).Methods(http.MethodGet)
	c.HandleFunc("/runs/{id}/report", h.RunReport).Methods(http.MethodGet)

	c.HandleFunc("/exceptions/{id:[0-9]+}", h.GetException).Methods(http.MethodGet)
	c.HandleFunc("/exceptions/{id:[0-9]+}/accept", h.AcceptException).Methods(http.MethodPost)
	c.HandleFunc("/exceptions/{id:[0-9]+}/correction", h.SetCorrection).Methods(http.MethodPatch)
	c.HandleFunc("/accepted", h.RecordAccepted).Methods(http.MethodPost)
	c.HandleFunc("/accepted/{hash:[0-9a-fA-F]{64}}", h.IsAccepted).Methods(http.MethodGet)
	c.HandleFunc("/oracles", h.Oracles).Methods(http.MethodGet)
	c.HandleFunc("/reference/reload", h.ReloadReference).Methods(http.MethodPost)

	s := c.PathPrefix("/suspicious").Subrouter()
	s.HandleFunc("/rules", h.ListRules).Methods(http.MethodGet)
	s.HandleFunc("/rules", h.PutRule).Methods(http.MethodPut)
	s.HandleFunc("/rules", h.DeleteRule).Methods(http.MethodDelete)
	s.HandleFunc("/options", h.ListOptions).Methods(http.MethodGet)
	s.HandleFunc("/options", h.AddOption).Methods(http.MethodPost)
	s.HandleFunc("/options", h.DeleteOption).Methods(http.MethodDelete)
	s.HandleFunc("/log", h.ListSuspicious).Methods(http.MethodGet)
	s.HandleFunc("/log/{id:[0-9]+}/review", h.ReviewSuspicious).Methods(http.MethodPost)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.RespondWithError(w, http.StatusNotFound, constants.ErrRouteNotFound)
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.RespondWithError(w, http.StatusMethodNotAllowed, constants.ErrMethodNotAllowed)
	})
	return router
}
