package controllers

import (
	"net/http"

	"github.com/ordena-ai/ordena-backend/api/middleware"
	"github.com/ordena-ai/ordena-backend/api/responses"
)

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"scope": "public", "status": "ok"})
	}
}

func PrivatePing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{"scope": "private", "status": "ok"}
		if store := middleware.StoreIDFromContext(r.Context()); store != "" {
			payload["store_id"] = store
		}
		responses.WriteSuccess(w, payload)
	}
}
