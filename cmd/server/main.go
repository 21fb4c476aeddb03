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

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/gorilla/mux"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/ndauth/ndauth/internal/config"
	"github.com/ndauth/ndauth/internal/handlers"
	"github.com/ndauth/ndauth/internal/middleware"
	"github.com/ndauth/ndauth/internal/repository"
	"github.com/ndauth/ndauth/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	db, err := initDatabase(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	ledger, err := initLedger(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize revocation ledger")
	}

	userRepo := repository.NewUserRepository(db, logger)

	tokenService, err := service.NewTokenService(&cfg.JWT, ledger, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize token service")
	}

	credentialService := service.NewCredentialService(userRepo, logger)

	authHandlers := handlers.NewAuthHandlers(
		credentialService,
		tokenService,
		&cfg.Cookie,
		&cfg.JWT,
		logger,
	)

	cookieAuth := middleware.NewCookieAuth(tokenService, userRepo, logger)
	router := setupRouter(authHandlers, cookieAuth, cfg, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

func initDatabase(cfg *config.Config, logger *logrus.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := repository.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("Database initialized")
	return db, nil
}

func initLedger(cfg *config.Config, logger *logrus.Logger) (repository.RevocationLedger, error) {
	switch cfg.Ledger.Backend {
	case config.LedgerBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Endpoint,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}

		logger.Info("Redis revocation ledger initialized")
		return repository.NewRedisRevocationLedger(client, logger), nil

	case config.LedgerBackendDynamo:
		client, err := initDynamoDB(cfg)
		if err != nil {
			return nil, err
		}

		logger.Info("DynamoDB revocation ledger initialized")
		return repository.NewDynamoRevocationLedger(client, cfg.DynamoDB.TableName, logger), nil

	default:
		logger.Warn("Using in-memory revocation ledger; revocations do not survive restarts")
		return repository.NewMemoryRevocationLedger(), nil
	}
}

func initDynamoDB(cfg *config.Config) (*dynamodb.Client, error) {
	var awsCfg aws.Config
	var err error

	if cfg.DynamoDB.Endpoint != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.TODO(),
			awsconfig.WithRegion(cfg.DynamoDB.Region),
			awsconfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
				func(service, region string, options ...interface{}) (aws.Endpoint, error) {
					return aws.Endpoint{
						URL:           cfg.DynamoDB.Endpoint,
						SigningRegion: cfg.DynamoDB.Region,
					}, nil
				})),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.TODO())
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg), nil
}

func setupRouter(
	authHandlers *handlers.AuthHandlers,
	cookieAuth *middleware.CookieAuth,
	cfg *config.Config,
	logger *logrus.Logger,
) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.CORSMiddleware(cfg.Server.AllowedOrigins))
	router.Use(middleware.LoggingMiddleware(logger))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET", "OPTIONS")

	api := router.PathPrefix("/api/users").Subrouter()
	api.HandleFunc("/login", authHandlers.Login).Methods("POST", "OPTIONS")
	api.HandleFunc("/logout", authHandlers.Logout).Methods("POST", "OPTIONS")
	api.HandleFunc("/refresh-token", authHandlers.RefreshToken).Methods("POST", "OPTIONS")

	protected := api.PathPrefix("/").Subrouter()
	protected.Use(cookieAuth.RequireAuth)
	protected.HandleFunc("/me", authHandlers.Me).Methods("GET")

	return router
}
