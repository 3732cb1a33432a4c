package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/stripe/stripe-go/v78"

	"fleetrental/internal/api"
	"fleetrental/internal/auth"
	"fleetrental/internal/entityapi"
	"fleetrental/internal/repository"
	"fleetrental/internal/service"
)

func main() {
	godotenv.Load()

	store, err := buildStore()
	if err != nil {
		log.Fatalf("Failed to set up entity store: %v", err)
	}

	fleetRepo := repository.NewFleetRepository(store)
	bookingRepo := repository.NewBookingRepository(store)
	notificationRepo := repository.NewNotificationRepository(store)

	notificationSvc := service.NewNotificationService(notificationRepo)
	quoteSvc := service.NewQuoteService(bookingRepo)
	allocationSvc := service.NewAllocationService(bookingRepo, fleetRepo, notificationSvc)
	allocationSvc.Sender = service.NewSenderService()
	if key := os.Getenv("STRIPE_SECRET_KEY"); key != "" {
		stripe.Key = key
		allocationSvc.Payments = service.NewPaymentService()
	} else {
		log.Println("STRIPE_SECRET_KEY not set, deposit sessions disabled")
	}
	fleetSvc := service.NewFleetService(fleetRepo, bookingRepo, notificationSvc)
	calendarSvc := service.NewCalendarService(fleetRepo, bookingRepo)
	jobSvc := service.NewJobService(bookingRepo, fleetSvc, notificationSvc)

	quoteHandler := api.NewQuoteHandler(quoteSvc, allocationSvc)
	reservationHandler := api.NewReservationHandler(bookingRepo, allocationSvc)
	fleetHandler := api.NewFleetHandler(fleetRepo, fleetSvc)
	calendarHandler := api.NewCalendarHandler(calendarSvc)
	notificationHandler := api.NewNotificationHandler(notificationSvc)

	r := mux.NewRouter()

	// Stripe calls this endpoint directly, it stays outside staff auth.
	if secret := os.Getenv("STRIPE_WEBHOOK_SECRET"); secret != "" {
		stripeHandler := api.NewStripeWebhookHandler(secret, bookingRepo)
		r.HandleFunc("/api/stripe/webhook", stripeHandler.HandleWebhook).Methods("POST")
	}

	staff := r.PathPrefix("/api").Subrouter()
	staff.Use(auth.StaffAuthMiddleware)

	staff.HandleFunc("/vehicles", fleetHandler.ListVehicles).Methods("GET")
	staff.HandleFunc("/vehicles/{id}", fleetHandler.GetVehicle).Methods("GET")
	staff.HandleFunc("/vehicles/{id}/tracking", fleetHandler.VehicleTracking).Methods("GET")
	staff.HandleFunc("/vehicles/{id}/checkout", fleetHandler.Checkout).Methods("POST")
	staff.HandleFunc("/vehicles/{id}/checkin", fleetHandler.CheckIn).Methods("POST")
	staff.HandleFunc("/workflows/{id}/advance", fleetHandler.AdvanceWorkflow).Methods("POST")
	staff.HandleFunc("/locations", fleetHandler.ListLocations).Methods("GET")

	staff.HandleFunc("/quotes", quoteHandler.ListQuotes).Methods("GET")
	staff.HandleFunc("/quotes", quoteHandler.CreateQuote).Methods("POST")
	staff.HandleFunc("/quotes/{id}/send", quoteHandler.SendQuote).Methods("POST")
	staff.HandleFunc("/quotes/{id}/convert", quoteHandler.ConvertQuote).Methods("POST")
	staff.HandleFunc("/quotes/{id}/candidates", quoteHandler.CandidateVehicles).Methods("GET")

	staff.HandleFunc("/reservations", reservationHandler.ListReservations).Methods("GET")
	staff.HandleFunc("/reservations/{id}", reservationHandler.GetReservation).Methods("GET")
	staff.HandleFunc("/reservations/{id}/confirm", reservationHandler.ConfirmReservation).Methods("POST")
	staff.HandleFunc("/reservations/{id}", reservationHandler.CancelReservation).Methods("DELETE")

	staff.HandleFunc("/calendar/week", calendarHandler.WeekView).Methods("GET")
	staff.HandleFunc("/calendar/month", calendarHandler.MonthView).Methods("GET")

	staff.HandleFunc("/notifications", notificationHandler.ListUnread).Methods("GET")
	staff.HandleFunc("/notifications/read-all", notificationHandler.MarkAllRead).Methods("POST")
	staff.HandleFunc("/notifications/{id}/read", notificationHandler.MarkRead).Methods("POST")
	staff.HandleFunc("/notifications/{id}/confirm", notificationHandler.Confirm).Methods("POST")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	startJobs(ctx, jobSvc)
	startPollers(ctx, notificationSvc, fleetSvc)

	corsOrigins := handlers.AllowedOrigins([]string{"*"})
	corsMethods := handlers.AllowedMethods([]string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"})
	corsHeaders := handlers.AllowedHeaders([]string{"Content-Type", "Authorization"})
	handler := handlers.LoggingHandler(os.Stdout, handlers.CORS(corsOrigins, corsMethods, corsHeaders)(r))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Server running on port %s", port)
	log.Fatal(http.ListenAndServe(":"+port, handler))
}

// buildStore picks the entity backend: a Postgres document store when
// DATABASE_URL is set, otherwise the hosted entity API.
func buildStore() (entityapi.Store, error) {
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		db, err := sql.Open("postgres", dbURL)
		if err != nil {
			return nil, err
		}
		if err := db.Ping(); err != nil {
			return nil, err
		}
		pg := entityapi.NewPgStore(db)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			return nil, err
		}
		log.Println("Using Postgres entity store")
		return pg, nil
	}

	apiURL := os.Getenv("ENTITY_API_URL")
	if apiURL == "" {
		log.Fatal("Neither DATABASE_URL nor ENTITY_API_URL set")
	}
	log.Printf("Using hosted entity API at %s", apiURL)
	return entityapi.NewClient(apiURL, os.Getenv("ENTITY_API_KEY")), nil
}

func startJobs(ctx context.Context, jobs *service.JobService) {
	c := cron.New()
	c.AddFunc("@every 10m", func() {
		if err := jobs.CompleteFinishedReservations(ctx); err != nil {
			log.Printf("Cron Job: completing reservations: %v", err)
		}
	})
	c.AddFunc("@every 15m", func() {
		if err := jobs.EscalateOverdueConfirmations(ctx); err != nil {
			log.Printf("Cron Job: escalating confirmations: %v", err)
		}
	})
	c.AddFunc("@hourly", func() {
		if err := jobs.SweepServiceTriggers(ctx); err != nil {
			log.Printf("Cron Job: sweeping service triggers: %v", err)
		}
	})
	c.Start()
	go func() {
		<-ctx.Done()
		c.Stop()
	}()
}

// startPollers keeps the dashboard feeds fresh: the notification bell
// shows an unread count and the fleet map tracks GPS positions.
func startPollers(ctx context.Context, notifications *service.NotificationService, fleet *service.FleetService) {
	notifPoller := &service.Poller{
		Name:     "notifications",
		Interval: 30 * time.Second,
		Fetch: func(ctx context.Context) (any, error) {
			list, err := notifications.ListUnread(ctx, 50)
			if err != nil {
				return nil, err
			}
			return len(list), nil
		},
		Apply: func(result any) {
			log.Printf("Poller notifications: %d unread", result)
		},
	}
	gpsPoller := &service.Poller{
		Name:     "gps",
		Interval: 30 * time.Second,
		Fetch: func(ctx context.Context) (any, error) {
			n, err := fleet.SyncGps(ctx)
			if err != nil {
				return nil, err
			}
			return n, nil
		},
		Apply: func(result any) {
			log.Printf("Poller gps: %d vehicles updated", result)
		},
	}
	go notifPoller.Run(ctx)
	go gpsPoller.Run(ctx)
}
