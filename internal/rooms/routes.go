package rooms

import (
	"github.com/gorilla/mux"

	"github.com/sonuprasad23/spark/internal/auth"
)

func RegisterRoutes(router *mux.Router, handler *Handler, authMiddleware *auth.Middleware) {
	api := router.PathPrefix("/api/v1/rooms").Subrouter()
	api.Use(authMiddleware.Authenticate)

	api.HandleFunc("", handler.GetActiveRooms).Methods("GET")
	api.HandleFunc("/{id}", handler.GetRoom).Methods("GET")
	api.HandleFunc("/{id}/messages", handler.GetMessages).Methods("GET")
	api.HandleFunc("/{id}/messages", handler.SendMessage).Methods("POST")
	api.HandleFunc("/{id}/read", handler.MarkRead).Methods("POST")
	api.HandleFunc("/{id}/delivered", handler.MarkDelivered).Methods("POST")
	api.HandleFunc("/{id}/decision", handler.Decide).Methods("POST")
	api.HandleFunc("/{id}/media", handler.RequestMediaUpload).Methods("POST")
}
