// internal/scheduler/handler.go
// Token-guarded trigger for an external scheduler (Cloud Scheduler, cron)

package scheduler

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/sonuprasad23/spark/internal/common/apperr"
	"github.com/sonuprasad23/spark/internal/common/utils"
)

const jobTokenHeader = "X-Job-Token"

type Handler struct {
	runner *Runner
	token  string
}

func NewHandler(runner *Runner, token string) *Handler {
	return &Handler{runner: runner, token: token}
}

// RunJob runs the job named in the path and responds with its summary
func (h *Handler) RunJob(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		utils.RespondWithError(w, apperr.Unauthenticated("invalid job token"))
		return
	}

	summary, err := h.runner.Run(r.Context(), mux.Vars(r)["job"])
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}

	utils.RespondWithData(w, http.StatusOK, summary)
}

// ListJobs returns the registered job names
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		utils.RespondWithError(w, apperr.Unauthenticated("invalid job token"))
		return
	}
	utils.RespondWithData(w, http.StatusOK, h.runner.Names())
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.token == "" {
		return false
	}
	got := r.Header.Get(jobTokenHeader)
	if got == "" {
		got = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) == 1
}

// RegisterRoutes mounts the job trigger. Without a token every call is rejected.
func RegisterRoutes(router *mux.Router, handler *Handler) {
	jobs := router.PathPrefix("/internal/jobs").Subrouter()
	jobs.HandleFunc("", handler.ListJobs).Methods("GET")
	jobs.HandleFunc("/{job}", handler.RunJob).Methods("POST")
}
