package rooms

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/sonuprasad23/spark/internal/auth"
	"github.com/sonuprasad23/spark/internal/common/apperr"
	"github.com/sonuprasad23/spark/internal/common/utils"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// GetActiveRooms lists the caller's open rooms
func (h *Handler) GetActiveRooms(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}

	rooms, err := h.service.ActiveRooms(r.Context(), userID)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}

	utils.RespondWithData(w, http.StatusOK, rooms)
}

func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}

	room, err := h.service.GetRoom(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}

	utils.RespondWithData(w, http.StatusOK, room)
}

// GetMessages returns a page of history. before is a unix timestamp in milliseconds.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	var before time.Time
	if raw := r.URL.Query().Get("before"); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			utils.RespondWithError(w, apperr.InvalidArgument("before must be a unix timestamp in milliseconds"))
			return
		}
		before = time.UnixMilli(ms)
	}

	messages, err := h.service.ListMessages(r.Context(), mux.Vars(r)["id"], userID, limit, before)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}

	utils.RespondWithData(w, http.StatusOK, messages)
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}

	var req SendMessageRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, err)
		return
	}

	msg, err := h.service.SendMessage(r.Context(), userID, OutgoingMessage{
		RoomID:      mux.Vars(r)["id"],
		Text:        req.Text,
		Type:        MessageType(req.Type),
		MediaURL:    req.MediaURL,
		DurationSec: req.Duration,
	})
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}

	utils.RespondWithData(w, http.StatusCreated, msg)
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}

	n, err := h.service.MarkRead(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}

	utils.RespondWithData(w, http.StatusOK, MarkResponse{Updated: n})
}

func (h *Handler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}

	n, err := h.service.MarkDelivered(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}

	utils.RespondWithData(w, http.StatusOK, MarkResponse{Updated: n})
}

func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}

	var req DecisionRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, err)
		return
	}

	result, err := h.service.Decide(r.Context(), mux.Vars(r)["id"], userID, Decision(req.Decision))
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}

	utils.RespondWithData(w, http.StatusOK, result)
}

func (h *Handler) RequestMediaUpload(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}

	var req MediaUploadRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, err)
		return
	}

	upload, err := h.service.RequestMediaUpload(r.Context(), mux.Vars(r)["id"], userID, MessageType(req.Type), req.ContentType)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}

	utils.RespondWithData(w, http.StatusOK, upload)
}
