package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mercator-hq/rulebook/pkg/config"
)

// APIKeyHeader is the alternative to a bearer token.
const APIKeyHeader = "X-API-Key"

type keyNameKey struct{}

// KeyName returns the name of the API key that authenticated the request.
func KeyName(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(keyNameKey{}).(string)
	return name, ok
}

// keyValidator maps accepted keys to their holders.
type keyValidator struct {
	keys map[string]string
}

func newKeyValidator(keys []config.APIKeyConfig) *keyValidator {
	m := make(map[string]string, len(keys))
	for _, k := range keys {
		if k.Disabled || k.Key == "" {
			continue
		}
		m[k.Key] = k.Name
	}
	return &keyValidator{keys: m}
}

func (v *keyValidator) validate(key string) (string, bool) {
	name, ok := v.keys[key]
	return name, ok
}

// extractAPIKey reads the key from a bearer Authorization header or from
// X-API-Key.
func extractAPIKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if key, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(key)
		}
	}
	return r.Header.Get(APIKeyHeader)
}

// authMiddleware rejects requests without a valid API key with 401.
func authMiddleware(v *keyValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := extractAPIKey(r)
			if key == "" {
				logger.Warn("missing API key", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
				w.Header().Set("WWW-Authenticate", `Bearer realm="rulebook"`)
				writeError(w, r, http.StatusUnauthorized, ErrorTypeAuthentication, "", "missing API key")
				return
			}

			name, ok := v.validate(key)
			if !ok {
				logger.Warn("invalid API key", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
				w.Header().Set("WWW-Authenticate", `Bearer realm="rulebook", error="invalid_token"`)
				writeError(w, r, http.StatusUnauthorized, ErrorTypeAuthentication, "", "invalid API key")
				return
			}

			logger.Debug("API key authenticated", "key_name", name, "path", r.URL.Path)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), keyNameKey{}, name)))
		})
	}
}

// newTLSConfig loads the certificate pair in cfg and checks that the leaf
// is currently valid. It returns nil when TLS is disabled.
func newTLSConfig(cfg *config.TLSConfig) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, errors.New("cert_file and key_file are required when TLS is enabled")
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}
	if err := validateCertificate(&cert, time.Now()); err != nil {
		return nil, fmt.Errorf("certificate validation failed: %w", err)
	}

	minVersion := uint16(tls.VersionTLS12)
	if cfg.MinVersion == "1.3" {
		minVersion = tls.VersionTLS13
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   minVersion,
	}, nil
}

// validateCertificate rejects a leaf certificate that is expired or not yet
// valid at now.
func validateCertificate(cert *tls.Certificate, now time.Time) error {
	if len(cert.Certificate) == 0 {
		return errors.New("certificate chain is empty")
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}
	if now.Before(leaf.NotBefore) {
		return fmt.Errorf("certificate is not yet valid (valid from %s)", leaf.NotBefore.Format(time.RFC3339))
	}
	if now.After(leaf.NotAfter) {
		return fmt.Errorf("certificate expired on %s", leaf.NotAfter.Format(time.RFC3339))
	}
	return nil
}
