package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"gopkg.in/gomail.v2"
	"pricepal/internal/cache"
	"pricepal/internal/client"
	"pricepal/internal/configuration"
	"pricepal/internal/database"
	"pricepal/internal/logger"
	"pricepal/internal/scheduler"
	"pricepal/internal/server"
)

func main() {
	if err := runApp(); err != nil {
		os.Exit(1)
	}
}

func runApp() error {
	appContext := context.Background()
	logOutput := io.Writer(os.Stdout)
	appLogger := logger.NewLogger(logger.LevelInfo, logOutput)

	defer func() {
		if r := recover(); r != nil {
			appLogger.Errorf("APPLICATION CRASHED: %+v", r)
		}
	}()

	config, err := configuration.GetConfig("config.toml")
	if err != nil {
		appLogger.Error("Error getting configuration from config.toml:", err)
		return err
	}

	if config.LogToFile {
		logFile, err := os.OpenFile("pricepal.log", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			appLogger.Error("Error opening log file:", err)
			return err
		}
		defer func() {
			if err := logFile.Close(); err != nil {
				appLogger.Error("Error closing log file:", err)
			}
		}()
		logOutput = io.MultiWriter(logOutput, logFile)
	}
	appLogger = logger.NewLogger(config.LogLevel, logOutput)

	appLogger.Info("Connecting to DB at", config.DatabaseURI)
	dbConn, err := database.ConnectDB(appContext, config.DatabaseURI)
	if err != nil {
		appLogger.Error("Error connecting to DB:", err)
		return err
	}
	defer func() {
		if err := dbConn.Disconnect(appContext); err != nil {
			appLogger.Error("Error disconnecting from DB:", err)
		}
	}()

	appLogger.Info("Connecting to Redis at", config.RedisURI)
	redisConn, err := cache.ConnectCache(appContext, config.RedisURI)
	if err != nil {
		appLogger.Error("Error connecting to Redis:", err)
		return err
	}
	defer func() {
		if err := redisConn.Close(); err != nil {
			appLogger.Error("Error closing Redis connection:", err)
		}
	}()

	srv := server.Server{
		DB: database.Database{Database: dbConn.Database(database.Name)},
		Amazon: client.Client{
			Client: &http.Client{Timeout: config.ScrapeTimeout},
			Logger: appLogger,
		},
		Mailer: client.Mailer{
			Dialer: gomail.NewDialer(config.SMTPHost, config.SMTPPort, config.SMTPUsername, config.SMTPPassword),
			From:   config.EmailFrom,
			AppURL: config.AppURL,
		},
		Cache:             cache.Cache{Client: redisConn},
		Logger:            appLogger,
		AuthSecretKey:     config.AuthSecretKey,
		ScrapeConcurrency: config.ScrapeConcurrency,
		ObservationTTL:    config.ObservationCacheTTL,
	}

	sched := &scheduler.Scheduler{
		Clock:  scheduler.SystemClock{},
		Logger: appLogger,
	}
	if err := sched.AddJob("price-check", config.PriceCheckSchedule, srv.CheckAllPrices); err != nil {
		appLogger.Error("Error adding price-check job:", err)
		return err
	}
	if err := sched.AddJob("weekly-reminder", config.ReminderSchedule, srv.SendWeeklyReminders); err != nil {
		appLogger.Error("Error adding weekly-reminder job:", err)
		return err
	}
	appLogger.Info("Starting scheduler with price check schedule:", config.PriceCheckSchedule)
	go sched.Run(appContext)

	httpSrv := &http.Server{
		Handler:      srv.Router(),
		Addr:         config.ServerAddress,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	appLogger.Info("Serving on", httpSrv.Addr)
	err = httpSrv.ListenAndServe()
	appLogger.Error("Error serving:", err)
	return err
}
