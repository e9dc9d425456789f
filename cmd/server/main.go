package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Amina2304/MedTrack/internal/config"
	"github.com/Amina2304/MedTrack/internal/database"
	"github.com/Amina2304/MedTrack/internal/events"
	"github.com/Amina2304/MedTrack/internal/handlers"
	"github.com/Amina2304/MedTrack/internal/jobs"
	"github.com/Amina2304/MedTrack/internal/models"
	"github.com/Amina2304/MedTrack/internal/notifier"
	"github.com/Amina2304/MedTrack/internal/reminder"
	"github.com/Amina2304/MedTrack/internal/repository"
	cronjobs "github.com/Amina2304/MedTrack/internal/scheduler"
	"github.com/Amina2304/MedTrack/internal/services"
	"github.com/Amina2304/MedTrack/pkg/logger"
	"github.com/Amina2304/MedTrack/pkg/middleware"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func main() {
	// Load configuration from .env file
	cfg := config.LoadConfig()

	logger.InitLogger()
	logger.Log.Info("Logger initialized")

	// Connect to MongoDB
	db, err := database.ConnectDB(cfg)
	if err != nil {
		log.Fatalf("Database connection error: %v", err)
	}

	// --- Repositories ---
	userRepo := repository.NewUserRepository(db)
	medRepo := repository.NewMedicationRepository(db)
	logRepo := repository.NewLogRepository(db)
	notifRepo := repository.NewNotificationRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	contactRepo := repository.NewContactRepository(db)

	// --- Event bus ---
	// Redis keeps multiple server instances in sync; the in-memory bus
	// covers the single-instance setup.
	var bus events.Bus
	if cfg.RedisURL != "" {
		redisBus, err := events.NewRedisBus(context.Background(), cfg.RedisURL)
		if err != nil {
			log.Fatalf("Redis connection error: %v", err)
		}
		bus = redisBus
		logger.Log.Info("Using Redis event bus")
	} else {
		bus = events.NewMemoryBus()
	}

	// --- Notification hub ---
	hub := notifier.NewHub()
	go hub.Run(bus)

	// --- Reminder engine ---
	settingsService := services.NewSettingsService(settingsRepo)
	locks := reminder.NewLockManager(cfg.LockTTL)
	planner := reminder.NewPlanner(notifRepo, logRepo, settingsService, nil)
	dispatcher := reminder.NewDispatcher(notifRepo, logRepo, settingsService, hub, cfg.DispatchLimit, nil)

	// The escalator is built before the reminder service but alerts through
	// it, so the callback binds late.
	var reminderService *services.ReminderService
	escalator := reminder.NewEscalator(notifRepo, logRepo, settingsService, nil,
		func(userID primitive.ObjectID, key models.DoseKey, medicationName string) {
			if reminderService != nil {
				reminderService.AlertEmergencyContacts(userID, key, medicationName)
			}
		})

	medService := services.NewMedicationService(medRepo, logRepo, planner, escalator)
	recorder := reminder.NewRecorder(logRepo, notifRepo, locks, escalator, bus,
		cfg.ReleaseCooldown, nil, medService.ResolvedHook)

	// --- Services ---
	userService := services.NewUserService(userRepo)
	logService := services.NewLogService(logRepo, medRepo, recorder)
	notificationService := services.NewNotificationService(notifRepo, userRepo, logRepo, settingsService, services.StaticTipProvider{})
	contactService := services.NewContactService(contactRepo, notifRepo)
	reminderService = services.NewReminderService(medRepo, notifRepo, contactRepo, userRepo, planner, dispatcher, escalator)

	// --- Handlers ---
	userHandler := handlers.NewUserHandler(userService, cfg)
	medHandler := handlers.NewMedicationHandler(medService)
	logHandler := handlers.NewLogHandler(logService)
	notifHandler := handlers.NewNotificationHandler(notificationService)
	settingsHandler := handlers.NewSettingsHandler(settingsService)
	contactHandler := handlers.NewContactHandler(contactService)
	wsHandler := handlers.NewWSHandler(hub, cfg.JWTSecret)

	// Initialize Gorilla Mux router
	router := mux.NewRouter()

	// Public user routes
	router.HandleFunc("/users/register", userHandler.RegisterUserHandler).Methods("POST")
	router.HandleFunc("/users/login", userHandler.LoginUserHandler).Methods("POST")

	// Protected user routes
	protectedUserRoutes := router.PathPrefix("/users").Subrouter()
	protectedUserRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	protectedUserRoutes.HandleFunc("/me", userHandler.GetMeHandler).Methods("GET")
	protectedUserRoutes.HandleFunc("/me", userHandler.UpdateUserHandler).Methods("PATCH")
	protectedUserRoutes.HandleFunc("/{id}", userHandler.GetUserHandler).Methods("GET")

	// Medication routes
	medRoutes := router.PathPrefix("/medications").Subrouter()
	medRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	medRoutes.HandleFunc("", medHandler.CreateMedicationHandler).Methods("POST")
	medRoutes.HandleFunc("", medHandler.GetMedicationsHandler).Methods("GET")
	medRoutes.HandleFunc("/{id}", medHandler.GetMedicationHandler).Methods("GET")
	medRoutes.HandleFunc("/{id}", medHandler.UpdateMedicationHandler).Methods("PUT")
	medRoutes.HandleFunc("/{id}", medHandler.DeleteMedicationHandler).Methods("DELETE")

	// Log routes and dose actions
	logRoutes := router.PathPrefix("/logs").Subrouter()
	logRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	logRoutes.HandleFunc("", logHandler.GetLogsHandler).Methods("GET")
	logRoutes.HandleFunc("/take", logHandler.MarkTakenHandler).Methods("POST")
	logRoutes.HandleFunc("/dismiss", logHandler.MarkDismissedHandler).Methods("POST")

	// Notification routes
	notifRoutes := router.PathPrefix("/notifications").Subrouter()
	notifRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	notifRoutes.HandleFunc("", notifHandler.GetNotificationsHandler).Methods("GET")
	notifRoutes.HandleFunc("", notifHandler.ClearNotificationsHandler).Methods("DELETE")
	notifRoutes.HandleFunc("/{id}/read", notifHandler.MarkReadHandler).Methods("POST")
	notifRoutes.HandleFunc("/{id}/dismiss", notifHandler.DismissHandler).Methods("POST")

	// Settings routes
	settingsRoutes := router.PathPrefix("/settings").Subrouter()
	settingsRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	settingsRoutes.HandleFunc("/notifications", settingsHandler.GetSettingsHandler).Methods("GET")
	settingsRoutes.HandleFunc("/notifications", settingsHandler.UpdateSettingsHandler).Methods("PUT")

	// Emergency contact routes
	contactRoutes := router.PathPrefix("/contacts").Subrouter()
	contactRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	contactRoutes.HandleFunc("", contactHandler.CreateContactHandler).Methods("POST")
	contactRoutes.HandleFunc("", contactHandler.GetContactsHandler).Methods("GET")
	contactRoutes.HandleFunc("/{id}", contactHandler.UpdateContactHandler).Methods("PUT")
	contactRoutes.HandleFunc("/{id}", contactHandler.DeleteContactHandler).Methods("DELETE")

	// Admin routes
	adminRoutes := router.PathPrefix("/admin").Subrouter()
	adminRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	adminRoutes.Use(middleware.RequireRole("admin"))
	adminRoutes.HandleFunc("/users", userHandler.AdminGetAllUsersHandler).Methods("GET")

	// WebSocket notification stream (token auth via query parameter)
	router.HandleFunc("/ws/notifications", wsHandler.NotificationSocketHandler).Methods("GET")

	// Apply middleware for logging
	router.Use(middleware.LoggingMiddleware)

	// Run one cycle at startup so overdue escalation resumes after a
	// restart instead of waiting for the first cron tick.
	if err := reminderService.RunCycle(context.Background()); err != nil {
		logger.Log.WithError(err).Warn("Initial reminder cycle failed")
	}

	// --- Cron jobs ---
	supplyNotifier := jobs.NewSupplyNotifier(medRepo, notifRepo)
	cronRunner := cronjobs.StartReminderCronJobs(reminderService, notificationService, supplyNotifier)

	// Start the HTTP server
	port := cfg.Port
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"}, // adjust to frontend origin
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:    ":" + port,
		Handler: c.Handler(router),
	}

	go func() {
		fmt.Printf("Server running on port %s\n", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Escalation loops are rebuilt from the store on the next start, but the
	// timers must not fire into a dying process.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down")
	cronRunner.Stop()
	escalator.StopAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Warn("Server shutdown failed")
	}
}
