package clients

import "time"

const (
	MAX_RETRIES     = 3
	INITIAL_BACKOFF = 1 * time.Second
	MAX_BACKOFF     = 32 * time.Second
	REQUEST_TIMEOUT = 30 * time.Second
	USER_AGENT      = "toxiflow-scraper/1.0 (+https://github.com/spacesedan/toxiflow)"

	BASE_URL        = "https://www.reddit.com"
	REDDIT_AUTH_URL = "https://www.reddit.com/api/v1/access_token"
)
