package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/voxwire/voxwire/internal/adapter/driven/gateway/ws"
	"github.com/voxwire/voxwire/internal/core/service"
)

type Handler struct {
	CallService *service.CallService
	Router      *service.Router
	Presence    *service.Presence
	Registry    *service.Registry
	Hub         *ws.Hub
}

func NewHandler(callService *service.CallService, router *service.Router, presence *service.Presence, registry *service.Registry, hub *ws.Hub) *Handler {
	return &Handler{
		CallService: callService,
		Router:      router,
		Presence:    presence,
		Registry:    registry,
		Hub:         hub,
	}
}

func (h *Handler) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/ws", h.ServeWS)
	r.Get("/healthz", h.Healthz)

	return r
}

type healthResponse struct {
	Status      string `json:"status"`
	ActiveCalls int    `json:"active_calls"`
	OnlineUsers int    `json:"online_users"`
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:      "ok",
		ActiveCalls: h.Registry.SessionCount(),
		OnlineUsers: len(h.Hub.OnlineUsers()),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
