package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spacesedan/toxiflow/config"
	"github.com/spacesedan/toxiflow/internal/clients"
	"github.com/spacesedan/toxiflow/internal/db"
	"github.com/spacesedan/toxiflow/internal/ingest"
	"github.com/spacesedan/toxiflow/internal/logging"
	"github.com/spacesedan/toxiflow/internal/models"
)

func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)
	logging.InitLogger()

	containers := config.List("SCRAPE_CONTAINERS")
	if len(containers) == 0 {
		slog.Error("No containers configured, set SCRAPE_CONTAINERS")
		os.Exit(1)
	}

	if err := db.InitDB(); err != nil {
		slog.Error("Failed to initialize database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.CloseDB()

	var seen ingest.SeenStore
	if os.Getenv("VALKEY_INIT_ADDRESS") != "" {
		clients.InitValkey()
		defer clients.CloseValkey()
		seen = clients.GetValkeyClient()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetchOpts := []clients.FetchOption{}
	if oauthClient := clients.OAuthHTTPClient(ctx); oauthClient != nil {
		fetchOpts = append(fetchOpts, clients.WithHTTPClient(oauthClient))
	}
	if cookies := clients.LoadCookieBundle(os.Getenv("SCRAPER_COOKIES_PATH")); cookies != nil {
		fetchOpts = append(fetchOpts, clients.WithCookies(cookies))
	}
	fetcher := clients.NewFetchClient(fetchOpts...)

	ingester := ingest.NewIngester(fetcher, db.NewRepository(), seen, ingest.Options{
		AllowScrape:     config.Bool("ALLOW_SCRAPE"),
		EnvOptIn:        config.Bool("SCRAPE_OPT_IN"),
		MaxPosts:        config.IntOr("MAX_POSTS", ingest.DEFAULT_MAX_POSTS),
		CommentsPerPost: config.IntOr("COMMENTS_PER_POST", ingest.DEFAULT_MAX_COMMENTS),
		Timeframe:       os.Getenv("SCRAPE_TIMEFRAME"),
		Delay:           config.DurationOr("SCRAPE_DELAY", ingest.DEFAULT_ITEM_DELAY),
	})

	exitCode := 0
	for _, container := range containers {
		select {
		case <-ctx.Done():
			slog.Warn("Shutting down scraper, remaining containers skipped")
			os.Exit(exitCode)
		default:
		}

		report := ingester.IngestContainer(ctx, container)
		slog.Info("Container ingestion finished",
			slog.String("container", report.Container),
			slog.String("status", string(report.Status)),
			slog.Int("posts_saved", report.PostsSaved),
			slog.Int("attempted", report.Attempted),
			slog.Int("duplicates_dropped", report.DuplicatesDropped),
			slog.String("message", report.Message))

		if report.Status == models.IngestStatusError {
			exitCode = 1
		}
	}

	os.Exit(exitCode)
}
