package clients

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// OAuthHTTPClient builds an authenticated transport when an API credential
// pair is configured. Returns nil when no credentials are present, leaving
// the FetchClient on the anonymous public endpoints.
func OAuthHTTPClient(ctx context.Context) *http.Client {
	clientID := os.Getenv("REDDIT_CLIENT_ID")
	clientSecret := os.Getenv("REDDIT_CLIENT_SECRET")
	if clientID == "" || clientSecret == "" {
		return nil
	}

	conf := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     REDDIT_AUTH_URL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	slog.Info("[Credentials] Using OAuth client credentials")
	return conf.Client(ctx)
}

// LoadCookieBundle resolves an optional cookie bundle from a file path or an
// inline JSON mapping. The contents are treated as opaque key/value pairs
// and are never inspected beyond parsing.
func LoadCookieBundle(path string) map[string]string {
	if path == "" {
		path = os.Getenv("SCRAPER_COOKIES_PATH")
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("[Credentials] Cookie file not readable, continuing without it",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return nil
		}
		bundle := parseCookieJSON(raw)
		if bundle != nil {
			slog.Info("[Credentials] Loaded cookie bundle from file", slog.String("path", path))
		}
		return bundle
	}

	if inline := os.Getenv("SCRAPER_COOKIES"); inline != "" {
		bundle := parseCookieJSON([]byte(inline))
		if bundle != nil {
			slog.Info("[Credentials] Loaded cookie bundle from environment")
		}
		return bundle
	}

	return nil
}

func parseCookieJSON(raw []byte) map[string]string {
	var bundle map[string]string
	if err := json.Unmarshal(raw, &bundle); err != nil {
		slog.Warn("[Credentials] Cookie bundle is not a JSON object, ignoring",
			slog.String("error", err.Error()))
		return nil
	}
	if len(bundle) == 0 {
		return nil
	}
	return bundle
}
