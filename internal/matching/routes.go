package matching

import (
	"github.com/gorilla/mux"

	"github.com/sonuprasad23/spark/internal/auth"
)

func RegisterRoutes(router *mux.Router, handler *Handler, authMiddleware *auth.Middleware) {
	api := router.PathPrefix("/api/v1/matches").Subrouter()
	api.Use(authMiddleware.Authenticate)

	api.HandleFunc("", handler.GetWeeklyMatches).Methods("GET")
	api.HandleFunc("/preview", handler.PreviewCandidates).Methods("GET")
	api.HandleFunc("/compatibility/{userId}", handler.GetCompatibility).Methods("GET")
	api.HandleFunc("/{id}/action", handler.RecordAction).Methods("POST")
	api.HandleFunc("/{id}/view", handler.MarkViewed).Methods("POST")
}
