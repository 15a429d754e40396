package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/spacesedan/toxiflow/internal/clients"
	"github.com/spacesedan/toxiflow/internal/models"
)

// ListingParams are the negotiable request parameters of a listing endpoint.
// Limit is optional: deployed upstream versions differ on whether a maximum
// item count parameter is accepted.
type ListingParams struct {
	Limit     int
	Timeframe string
}

// ListingFunc fetches one listing page for a container.
type ListingFunc func(ctx context.Context, container string, params ListingParams) (*models.Listing, error)

// UnsupportedParamError marks a request rejected because of a parameter the
// deployed upstream version does not accept.
type UnsupportedParamError struct {
	Param string
}

func (e *UnsupportedParamError) Error() string {
	return fmt.Sprintf("unsupported parameter: %s", e.Param)
}

// Negotiator calls a listing function whose parameter contract can vary by
// upstream version. The first call includes the optional limit parameter; if
// that is rejected, the call is retried exactly once without it and the
// reduced parameter set is cached for the negotiator's lifetime.
type Negotiator struct {
	fetch ListingFunc

	mu               sync.Mutex
	limitUnsupported bool
}

func NewNegotiator(fetch ListingFunc) *Negotiator {
	return &Negotiator{fetch: fetch}
}

func (n *Negotiator) FetchListing(ctx context.Context, container string, params ListingParams) (*models.Listing, error) {
	if params.Limit > 0 && !n.limitKnownUnsupported() {
		listing, err := n.fetch(ctx, container, params)
		if err == nil {
			return listing, nil
		}
		if !rejectsParam(err, "limit") {
			return nil, err
		}

		slog.Info("[Negotiator] Limit parameter not accepted upstream, retrying without it",
			slog.String("container", container))
		n.markLimitUnsupported()
	}

	reduced := params
	reduced.Limit = 0
	listing, err := n.fetch(ctx, container, reduced)
	if err != nil {
		return nil, fmt.Errorf("listing fetch failed with reduced parameters: %w", err)
	}
	return listing, nil
}

func (n *Negotiator) limitKnownUnsupported() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.limitUnsupported
}

func (n *Negotiator) markLimitUnsupported() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.limitUnsupported = true
}

// rejectsParam reports whether err is a parameter rejection for param. The
// match is deliberately narrow: a typed UnsupportedParamError, or a fatal
// 4xx whose body names the exact parameter. Transient failures never match,
// even when their message happens to mention the parameter.
func rejectsParam(err error, param string) bool {
	var typed *UnsupportedParamError
	if errors.As(err, &typed) {
		return typed.Param == param
	}

	var fatal *clients.FatalError
	if errors.As(err, &fatal) {
		return bodyNamesParam(fatal.Body, param)
	}

	return false
}

// bodyNamesParam reports whether an error body singles out param as a request
// parameter: quoted verbatim, or as a whole word near vocabulary like
// "parameter" or "keyword". An incidental mention such as "rate limit
// exceeded" does not match.
func bodyNamesParam(body, param string) bool {
	if strings.Contains(body, "'"+param+"'") || strings.Contains(body, `"`+param+`"`) {
		return true
	}

	word := regexp.QuoteMeta(param)
	pattern := regexp.MustCompile(
		`(?i)\b(?:parameter|param|keyword|argument|field)s?\b[^.\n]{0,40}\b` + word +
			`\b|\b` + word + `\b[^.\n]{0,40}\b(?:parameter|param|keyword|argument|field)s?\b`)
	return pattern.MatchString(body)
}
