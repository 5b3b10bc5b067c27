package router

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/glosspos/api/internal/clock"
	"github.com/glosspos/api/internal/config"
	"github.com/glosspos/api/internal/database"
	"github.com/glosspos/api/internal/handler"
	"github.com/glosspos/api/internal/job"
	mw "github.com/glosspos/api/internal/middleware"
	"github.com/glosspos/api/internal/notify"
	"github.com/glosspos/api/internal/service"
	"github.com/glosspos/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication, shop scoping, and role-based middleware as needed.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173",           // SvelteKit dev server
			"https://app.glossdetailing.com",  // Production front desk
			"https://stg.glossdetailing.com",  // Staging
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/shops/{sid}/events", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Services
	sysClock := clock.System{}
	notifier := notify.NewLogNotifier()

	orderService := service.NewOrderService(pool, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}, cfg.TaxRate)

	quoteService := service.NewQuoteService(pool, func(db database.DBTX) service.QuoteStore {
		return database.New(db)
	}, queries, sysClock, notifier, cfg.TaxRate, cfg.QuoteValidityDays)

	jobService := service.NewJobService(pool, func(db database.DBTX) service.JobStore {
		return database.New(db)
	}, queries, sysClock, notifier,
		job.Requirement{Exterior: cfg.IntakeExteriorZones, Interior: cfg.IntakeInteriorZones},
		job.Requirement{Exterior: cfg.CompletionExteriorZones, Interior: cfg.CompletionInteriorZones},
		time.Duration(cfg.AddonExpiryHours)*time.Hour)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Shop-scoped routes
		r.Route("/shops/{sid}", func(r chi.Router) {
			r.Use(mw.RequireShop)

			// Users (management restricted to owner/admin)
			userHandler := handler.NewUserHandler(queries)
			r.Route("/users", func(r chi.Router) {
				r.Use(mw.RequireRole("OWNER", "ADMIN"))
				userHandler.RegisterRoutes(r)
			})

			// Catalog: products, services, tiers
			catalogHandler := handler.NewCatalogHandler(queries)
			catalogHandler.RegisterRoutes(r)

			// Customers and their vehicles
			customerHandler := handler.NewCustomerHandler(queries)
			r.Route("/customers", customerHandler.RegisterRoutes)

			// Orders and payments
			orderHandler := handler.NewOrderHandler(orderService, queries, hub)
			r.Route("/orders", orderHandler.RegisterRoutes)

			// Quotes
			quoteHandler := handler.NewQuoteHandler(quoteService, hub)
			r.Route("/quotes", quoteHandler.RegisterRoutes)

			// Jobs: lifecycle, photos, timer, add-ons
			jobHandler := handler.NewJobHandler(jobService, hub)
			r.Route("/jobs", jobHandler.RegisterRoutes)
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
