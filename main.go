// main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aeroclub-shop/config"
	"aeroclub-shop/controllers"
	"aeroclub-shop/middleware"
	"aeroclub-shop/policy"
	"aeroclub-shop/routes"
	"aeroclub-shop/services"
	"aeroclub-shop/store"
	"aeroclub-shop/utils"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := utils.ConnectDB(ctx, cfg.Mongo.URI)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.Error().Err(err).Msg("failed to disconnect from database")
		}
	}()
	log.Info().Str("database", cfg.Mongo.Database).Msg("connected to MongoDB")

	db := client.Database(cfg.Mongo.Database)
	orderStore := store.NewOrderStore(db, cfg.DBTimeout)
	userStore := store.NewUserStore(db, cfg.DBTimeout)
	productStore := store.NewProductStore(db, cfg.DBTimeout)
	if err := userStore.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to create user indexes")
	}
	if err := orderStore.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to create order indexes")
	}

	authz, err := policy.New()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build access policy")
	}
	tokens := utils.NewTokenManager(cfg.JWT.Secret, cfg.JWT.TTL)
	emailService := utils.NewEmailService(newMailer(cfg))

	orderService := services.NewOrderService(orderStore, userStore, productStore, authz, emailService)
	userService := services.NewUserService(userStore, authz, tokens)

	if cfg.Admin.Email != "" && cfg.Admin.Password != "" {
		if err := userService.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password); err != nil {
			log.Fatal().Err(err).Msg("failed to seed administrator")
		}
	}

	validate := controllers.NewValidator()
	gate := middleware.NewGate(tokens, userService, authz)

	router := mux.NewRouter()
	router.Use(middleware.RequestLogger(log.Logger))
	routes.RegisterRoutes(router,
		gate,
		controllers.NewUserController(userService, validate),
		controllers.NewOrderController(orderService, validate),
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("server is running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	orderService.WaitForNotifications()
}

func newMailer(cfg *config.Config) utils.Mailer {
	switch cfg.Email.Provider {
	case "postmark":
		return utils.NewPostmarkMailer(cfg.Email.PostmarkToken, cfg.Email.Sender)
	case "sendgrid":
		return utils.NewSendGridMailer(cfg.Email.SendGridKey, cfg.Email.Sender)
	default:
		log.Warn().Msg("no email provider configured, notifications are logged only")
		return utils.LogMailer{}
	}
}
