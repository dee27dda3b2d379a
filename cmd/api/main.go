package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/decembrrr/internal/calendar"
	"github.com/Dan9191/decembrrr/internal/clock"
	"github.com/Dan9191/decembrrr/internal/config"
	"github.com/Dan9191/decembrrr/internal/handler"
	"github.com/Dan9191/decembrrr/internal/integrations/holidays"
	"github.com/Dan9191/decembrrr/internal/middleware"
	"github.com/Dan9191/decembrrr/internal/models"
	"github.com/Dan9191/decembrrr/internal/repository"
	"github.com/Dan9191/decembrrr/internal/repository/memory"
	"github.com/Dan9191/decembrrr/internal/scheduler"
	"github.com/Dan9191/decembrrr/internal/service"
	"github.com/Dan9191/decembrrr/internal/utils/email"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Initialize storage
	clk := clock.Real{}
	var store service.Store
	switch cfg.Store {
	case config.StoreMemory:
		mem := memory.NewStore(clk)
		mem.SetDefaultLocation(cfg.Location())
		seedDemo(mem, cfg, logger)
		store = mem
	default:
		db, err := sql.Open("postgres", cfg.DBConn)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("Failed to ping database: %v", err)
		}
		store = repository.NewRepository(db)
	}

	// Initialize layers
	svc := service.NewService(store, logger, cfg, clk)
	if cfg.MailEnabled() {
		svc.SetNotifier(email.NewSender(cfg, logger))
	}
	if cfg.HolidayFeedURL != "" {
		svc.SetHolidaySource(holidays.NewClient(cfg, logger))
	}
	h := handler.NewHandler(svc, logger, cfg)

	// Setup router
	r := mux.NewRouter()
	r.Use(middleware.Logging(logger))
	h.Routes(r)

	// Schedule the daily deduction
	sched, err := scheduler.NewScheduler(cfg, svc, logger)
	if err != nil {
		logger.Fatalf("Failed to create scheduler: %v", err)
	}
	sched.Start()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	<-sched.Stop().Done()
}

// seedDemo fills an empty memory store with one class so the API is usable
// without a database.
func seedDemo(store *memory.Store, cfg *config.Config, logger *logrus.Logger) {
	loc := cfg.Location()
	today := calendar.DateIn(time.Now(), loc)
	monday := today.AddDate(0, 0, 1-calendar.ISOWeekday(today))

	class := store.AddClass(models.Class{
		Name:                "Demo class",
		DailyAmount:         decimal.NewFromInt(10),
		CollectionFrequency: models.FrequencyDaily,
		CollectionDays:      []int{1, 2, 3, 4, 5},
		DateInitiated:       monday.AddDate(0, 0, -14),
		Timezone:            cfg.DefaultTimezone,
	})
	for i, name := range []string{"Ana Cruz", "Ben Santos", "Cy Reyes"} {
		m := store.AddMember(models.Member{
			ClassID:   class.ID,
			StudentID: fmt.Sprintf("DEMO-%03d", i+1),
			Name:      name,
			IsActive:  true,
		})
		logger.Infof("Demo member %s (%s)", m.Name, m.ID)
	}
	logger.Infof("Memory store seeded with demo class %s", class.ID)
}
