package httpapi

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/DoyleJ11/auction-backend/internal/lobby"
	"github.com/DoyleJ11/auction-backend/internal/metrics"
	"github.com/DoyleJ11/auction-backend/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type Deps struct {
	Lobby          *lobby.Lobby
	Metrics        *metrics.Metrics
	Log            *zap.Logger
	AllowedOrigins []string
}

func SetupRoutes(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	wsOpts := ws.DefaultOptions()
	wsOpts.OriginPatterns = originHosts(d.AllowedOrigins)

	// Public routes
	r.Get("/healthz", Healthz(d.Lobby))
	r.Get("/ws", ws.Handler(d.Lobby, wsOpts, d.Log, d.Metrics))
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(10 * time.Second))
		r.Get("/items", ListItems(d.Lobby))
		r.Post("/item", CreateItem(d.Lobby))
		r.Delete("/items", ClearItems(d.Lobby))
		r.Get("/teams", ListTeams(d.Lobby))
		r.Delete("/teams", ClearTeams(d.Lobby))
	})
	return r
}

// originHosts turns CORS origins into the host patterns websocket.Accept
// matches against.
func originHosts(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if !strings.Contains(o, "://") {
			out = append(out, o)
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			// Wildcard ports do not parse as URLs.
			out = append(out, o[strings.Index(o, "://")+3:])
			continue
		}
		out = append(out, u.Host)
	}
	return out
}
