package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mkrupp/homecase-authsvc/internal/infra/config"
	"github.com/mkrupp/homecase-authsvc/internal/infra/logging"
	"github.com/mkrupp/homecase-authsvc/internal/infra/transport/http"
	"github.com/mkrupp/homecase-authsvc/internal/repo/event"
	"github.com/mkrupp/homecase-authsvc/internal/repo/user"
	"github.com/mkrupp/homecase-authsvc/internal/svc/authsvc"
	"github.com/mkrupp/homecase-authsvc/internal/svc/eventsvc"
)

const (
	appName = "demo"
	svcName = "authsvc"

	generatedSecretBytes = 32
)

type Config struct {
	config.EnvConfig

	Log   logging.LoggerConfig        `envPrefix:"LOG_"`
	Auth  authsvc.AuthConfig          `envPrefix:"AUTH_"`
	HTTP  authsvc.HTTPTransportConfig `envPrefix:"HTTP_"`
	User  user.RepositoryConfig       `envPrefix:"USER_"`
	Event event.RepositoryConfig      `envPrefix:"EVENT_"`
	Sink  eventsvc.DispatcherConfig   `envPrefix:"EVENT_SINK_"`
}

func main() {
	generateSecret := flag.Bool("generate-secret", false, "print a random token signing secret and exit")
	flag.Parse()

	if *generateSecret {
		secret, err := authsvc.GenerateSigningSecret(generatedSecretBytes)
		if err != nil {
			panic(err)
		}

		fmt.Println(secret) //nolint:forbidigo

		return
	}

	var (
		cfg Config

		configPrefix = strings.ToUpper(strings.Join([]string{appName, svcName}, "_"))
		loggerName   = strings.ToLower(strings.Join([]string{appName, svcName}, "."))
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.Parse(ctx, &cfg, configPrefix); err != nil {
		panic(err)
	}

	logging.Configure(ctx, cfg.Log, loggerName)

	if err := run(ctx, cfg); err != nil {
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config) (err error) {
	log := logging.GetLogger("cmd.authsvc")

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "error", "err", err)

			return
		}

		log.InfoContext(ctx, "shutdown")
	}()

	userRepoFactory, err := user.NewRepositoryFactory(ctx, cfg.User)
	if err != nil {
		return fmt.Errorf("new user repo factory: %w", err)
	}

	authSvc, err := authsvc.NewAuthService(userRepoFactory, cfg.Auth)
	if err != nil {
		return fmt.Errorf("new auth service: %w", err)
	}

	defer func() {
		if cerr := authSvc.Close(); cerr != nil {
			log.WarnContext(ctx, "close auth service failed", "error", cerr)
		}
	}()

	eventRepo, err := event.NewRepository(ctx, cfg.Event)
	if err != nil {
		return fmt.Errorf("new event repo: %w", err)
	}

	dispatcher := eventsvc.NewDispatcher(eventRepo, cfg.Sink)

	defer func() {
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout(cfg))
		defer cancel()

		if cerr := dispatcher.Close(drainCtx); cerr != nil {
			log.WarnContext(ctx, "close event dispatcher failed", "error", cerr)
		}
	}()

	httpTransport := authsvc.NewHTTPTransport(authSvc, dispatcher, cfg.HTTP)
	handler := http.NewServerHandler(httpTransport, dispatcher, cfg.HTTP.HTTPTransportConfig)

	if err := http.ListenAndServe(ctx, handler, cfg.HTTP.HTTPTransportConfig); err != nil {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

func shutdownTimeout(cfg Config) time.Duration {
	if cfg.HTTP.ShutdownTimeout > 0 {
		return cfg.HTTP.ShutdownTimeout
	}

	return 10 * time.Second
}
