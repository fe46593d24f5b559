package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/Dosada05/lanparty/auth"
	_ "github.com/Dosada05/lanparty/docs"
	"github.com/Dosada05/lanparty/handlers"
	"github.com/Dosada05/lanparty/metrics"
	"github.com/Dosada05/lanparty/middleware"
)

type Handlers struct {
	Auth         *handlers.AuthHandler
	User         *handlers.UserHandler
	Event        *handlers.EventHandler
	Registration *handlers.RegistrationHandler
	Tournament   *handlers.TournamentHandler
	Team         *handlers.TeamHandler
	Realtime     *handlers.RealtimeHandler
}

type Options struct {
	Tokens         *auth.TokenManager
	AllowedOrigins []string
	SignInLimiter  *middleware.RateLimiter
}

func SetupRoutes(router chi.Router, opts Options, h Handlers) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(metrics.Middleware)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", metrics.Handler())
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	router.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(opts.Tokens))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", h.Auth.SignUp)
			if opts.SignInLimiter != nil {
				r.With(opts.SignInLimiter.Middleware).Post("/signin", h.Auth.SignIn)
			} else {
				r.Post("/signin", h.Auth.SignIn)
			}
			r.With(middleware.RequireAuth).Get("/token", h.Auth.Token)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.User.ListUsers)
			r.Get("/{userID}", h.User.GetUser)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth)
				r.Patch("/{userID}", h.User.UpdateUser)
				r.Delete("/{userID}", h.User.DeleteUser)
				r.Put("/{userID}/picture", h.User.UploadPicture)
			})
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", h.Event.ListEvents)
			r.Get("/{eventID}", h.Event.GetEvent)
			r.Get("/{eventID}/registrations", h.Registration.ListRegistrations)
			r.Get("/{eventID}/registrations/{userID}", h.Registration.GetRegistration)
			r.Get("/{eventID}/tournaments", h.Tournament.ListTournaments)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth)
				r.Post("/", h.Event.CreateEvent)
				r.Patch("/{eventID}", h.Event.UpdateEvent)
				r.Delete("/{eventID}", h.Event.DeleteEvent)
				r.Put("/{eventID}/registrations/{userID}", h.Registration.PutRegistration)
				r.Delete("/{eventID}/registrations/{userID}", h.Registration.DeleteRegistration)
				r.Post("/{eventID}/tournaments", h.Tournament.CreateTournament)
			})
		})

		r.Route("/tournaments/{tournamentID}", func(r chi.Router) {
			r.Get("/", h.Tournament.GetTournament)
			r.Get("/teams", h.Team.ListTeams)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth)
				r.Patch("/", h.Tournament.UpdateTournament)
				r.Delete("/", h.Tournament.DeleteTournament)
				r.Put("/background", h.Tournament.UploadBackground)
				r.Post("/end", h.Tournament.EndTournament)
				r.Post("/teams", h.Team.CreateTeam)
			})
		})

		r.Route("/teams/{teamID}", func(r chi.Router) {
			r.Get("/", h.Team.GetTeam)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth)
				r.Patch("/", h.Team.UpdateTeam)
				r.Delete("/", h.Team.DeleteTeam)
				r.Put("/members/{userID}", h.Team.AddMember)
				r.Delete("/members/{userID}", h.Team.RemoveMember)
			})
		})

		r.Get("/realtime/{entity}", h.Realtime.Stream)
		r.Get("/ws/{entity}", h.Realtime.Socket)
	})
}
