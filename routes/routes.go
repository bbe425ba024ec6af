package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Dosada05/popularity-cup/handlers"
	"github.com/Dosada05/popularity-cup/middleware"
)

type Options struct {
	JWTSecret      string
	AllowedOrigins []string
}

func SetupRoutes(
	router *chi.Mux,
	opts Options,
	authHandler *handlers.AuthHandler,
	itemHandler *handlers.ItemHandler,
	tournamentHandler *handlers.TournamentHandler,
	reactionHandler *handlers.ReactionHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.Handler())

	authenticate := middleware.Authenticate(opts.JWTSecret)

	router.Post("/auth/register", authHandler.Register)
	router.Post("/auth/token", authHandler.Login)

	// Трансляция событий канала доступна без токена (только чтение).
	router.Get("/ws/channels/{channelID}", webSocketHandler.ServeWs)

	router.Group(func(r chi.Router) {
		r.Use(authenticate)

		r.Route("/items", func(r chi.Router) {
			r.Get("/", itemHandler.List)
			r.Post("/", itemHandler.Add)
			r.With(middleware.RequireStaff).Delete("/", itemHandler.Remove)
		})

		r.Route("/tournament", func(r chi.Router) {
			r.Get("/scoreboard", tournamentHandler.ScoreboardHandler)

			// Управление турниром только для staff
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireStaff)

				r.Post("/start", tournamentHandler.StartHandler)
				r.Post("/advance", tournamentHandler.AdvanceHandler)
				r.Post("/close", tournamentHandler.CloseHandler)
				r.Post("/end", tournamentHandler.EndHandler)
				r.Post("/reset", tournamentHandler.ResetHandler)
			})
		})

		r.Route("/history", func(r chi.Router) {
			r.Get("/", tournamentHandler.HistoryHandler)
			r.With(middleware.RequireStaff).Delete("/", tournamentHandler.DeleteHistoryHandler)
		})

		r.Route("/channels/{channelID}/messages/{messageID}/reactions", func(r chi.Router) {
			r.Put("/", reactionHandler.AddReaction)
			r.Delete("/", reactionHandler.RemoveReaction)
		})
	})
}
