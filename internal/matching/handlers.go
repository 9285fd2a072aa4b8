package matching

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sonuprasad23/spark/internal/auth"
	"github.com/sonuprasad23/spark/internal/common/utils"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) GetWeeklyMatches(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}

	matches, err := h.service.WeeklyMatches(r.Context(), userID)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}

	utils.RespondWithData(w, http.StatusOK, matches)
}

func (h *Handler) RecordAction(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}

	var req RecordActionRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, err)
		return
	}

	result, err := h.service.RecordAction(r.Context(), mux.Vars(r)["id"], userID, Action(req.Action))
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}

	utils.RespondWithData(w, http.StatusOK, result)
}

func (h *Handler) MarkViewed(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}

	match, err := h.service.MarkViewed(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}

	utils.RespondWithData(w, http.StatusOK, match)
}

func (h *Handler) PreviewCandidates(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}

	candidates, err := h.service.PreviewCandidates(r.Context(), userID)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}

	utils.RespondWithData(w, http.StatusOK, candidates)
}

func (h *Handler) GetCompatibility(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}

	other := mux.Vars(r)["userId"]
	score, err := h.service.Compatibility(r.Context(), userID, other)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}

	utils.RespondWithData(w, http.StatusOK, CompatibilityResponse{UserID: other, CompatibilityScore: score})
}
