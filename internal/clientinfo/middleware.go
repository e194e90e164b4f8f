package clientinfo

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"golang.org/x/mod/semver"

	"kitchencart/internal/model"
)

// contextKey is a private type for context values set by this package.
type contextKey struct{}

var infoContextKey = contextKey{}

// Middleware parses the Food-Client header and stores the result in the
// request context. When minVersion is non-empty, app builds reporting an
// older version are rejected with 426 Upgrade Required.
//
// The header is optional: requests without it (web clients, health
// probes) pass through with zero Info. A malformed header is rejected
// with 400 rather than silently ignored.
func Middleware(minVersion string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(Header)
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			info, err := ParseHeader(header)
			if err != nil {
				logger.Warn("invalid Food-Client header",
					slog.String("header", header),
					slog.String("error", err.Error()))
				writeError(w, model.NewValidationError(Header, err.Error()))
				return
			}

			if minVersion != "" && info.Version != "" && olderThan(info.Version, minVersion) {
				writeError(w, model.NewUpgradeRequiredError(minVersion))
				return
			}

			ctx := context.WithValue(r.Context(), infoContextKey, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromContext retrieves the parsed client info from a request context.
// Returns zero Info if the header was absent or middleware not applied.
func FromContext(ctx context.Context) Info {
	info, _ := ctx.Value(infoContextKey).(Info)
	return info
}

// olderThan reports whether version is strictly older than min.
// Versions arrive without the "v" prefix semver.Compare expects.
// An unparseable version is treated as current, not rejected.
func olderThan(version, min string) bool {
	v, m := "v"+version, "v"+min
	if !semver.IsValid(v) || !semver.IsValid(m) {
		return false
	}
	return semver.Compare(v, m) < 0
}

// writeError writes the standard error envelope.
func writeError(w http.ResponseWriter, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.StatusCode)

	resp := struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}{}
	resp.Error.Code = apiErr.Code
	resp.Error.Message = apiErr.Message

	json.NewEncoder(w).Encode(resp)
}
