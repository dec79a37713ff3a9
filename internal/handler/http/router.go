package http

import (
	"log/slog"
	"os"

	"github.com/cmlabs-hris/dtr-ingest/internal/handler/http/middleware"
	"github.com/cmlabs-hris/dtr-ingest/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
)

// AppInfo tags request logs and drives CORS.
type AppInfo struct {
	Name           string
	Version        string
	Env            string
	AllowedOrigins []string
}

func NewRouter(app AppInfo, JWTService jwt.Service, batchHandler BatchHandler) *chi.Mux {
	r := chi.NewRouter()
	logFormat := httplog.SchemaECS.Concise(app.Env != "production")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", app.Name),
		slog.String("version", app.Version),
		slog.String("env", app.Env),
	)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   app.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelDebug,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	r.Route("/api/v1/batches", func(r chi.Router) {
		r.Use(jwtauth.Verifier(JWTService.JWTAuth()))

		// EventSource cannot send headers; the handler also accepts a
		// ?token= stream token and resolves the company itself.
		r.Get("/{batchID}/events", batchHandler.Stream)

		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthRequired(JWTService.JWTAuth()))

			r.Post("/", batchHandler.Create)
			r.Get("/{batchID}", batchHandler.Get)
			r.Delete("/{batchID}", batchHandler.Reset)

			r.Post("/{batchID}/files", batchHandler.Upload)
			r.Get("/{batchID}/files/{fileID}/normalized", batchHandler.NormalizedFile)
			r.Post("/{batchID}/confirm-months", batchHandler.ConfirmMonths)
			r.Put("/{batchID}/period", batchHandler.SetPeriod)

			r.Post("/{batchID}/evaluate", batchHandler.Evaluate)
			r.Post("/{batchID}/identities", batchHandler.BindIdentity)

			r.Get("/{batchID}/employees", batchHandler.ListEmployees)
			r.Get("/{batchID}/offices", batchHandler.ListOffices)
			r.Get("/{batchID}/days", batchHandler.ListDays)
			r.Get("/{batchID}/excluded", batchHandler.ListExcluded)
			r.Get("/{batchID}/directory", batchHandler.SearchDirectory)

			r.Post("/{batchID}/export", batchHandler.Export)
			r.Post("/{batchID}/events/token", batchHandler.StreamToken)
		})
	})
	return r
}
