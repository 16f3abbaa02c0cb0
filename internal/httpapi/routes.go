package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Ameer8055/PIQUI-sub000/internal/ws"
)

func SetupRoutes(wsDeps ws.Deps, history History) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(wsDeps))
	r.Get("/api/users/{userID}/battles", ListBattles(history))
	return r
}
