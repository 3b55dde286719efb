// Package server normalizes and validates HTTP origins for WebSocket requests
// and cross-origin reads to enforce configured access control.
package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/cors"
	"github.com/samber/lo"
)

type originPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
}

func newOriginPolicy(origins []string, logger *slog.Logger) originPolicy {
	normalized, allowAll := normalizeOrigins(origins, logger)
	return originPolicy{
		allowAll: allowAll,
		allowed:  lo.SliceToMap(normalized, func(o string) (string, struct{}) { return o, struct{}{} }),
	}
}

func normalizeOrigins(origins []string, logger *slog.Logger) ([]string, bool) {
	if len(origins) == 0 {
		return nil, false
	}

	normalized := make([]string, 0, len(origins))
	allowAll := false

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}

		if trimmed == "*" {
			allowAll = true
			continue
		}

		normalizedOrigin, ok := normalizeOrigin(trimmed)
		if !ok {
			logger.Warn("ignoring invalid origin in configuration", "origin", origin)
			continue
		}

		normalized = append(normalized, normalizedOrigin)
	}

	return lo.Uniq(normalized), allowAll
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}

	normalized := strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host)
	return normalized, true
}

// allows reports whether a request's Origin header passes the policy.
// With "*" configured, requests without an Origin (non-browser clients)
// are allowed too.
func (p originPolicy) allows(r *http.Request) bool {
	if p.allowAll {
		return true
	}

	return p.allowsOrigin(r.Header.Get("Origin"))
}

func (p originPolicy) allowsOrigin(origin string) bool {
	if p.allowAll {
		return true
	}
	if origin == "" {
		return false
	}

	normalizedOrigin, ok := normalizeOrigin(origin)
	if !ok {
		return false
	}

	_, exists := p.allowed[normalizedOrigin]
	return exists
}

// corsOptions configures the CORS middleware from the policy. Outside of
// "*" the decision always goes through allowsOrigin, so a list with no
// valid entries denies every origin instead of falling back to allow-all.
func (p originPolicy) corsOptions() cors.Options {
	opts := cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}
	if p.allowAll {
		opts.AllowedOrigins = []string{"*"}
		return opts
	}
	opts.AllowOriginFunc = p.allowsOrigin
	return opts
}
