package core

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Authentication schemes accepted by the HTTP transport.
const (
	AuthNone   = "none"
	AuthBearer = "bearer"
	AuthBasic  = "basic"
)

// ParseAuthType normalizes an auth type name. Empty means AuthNone.
func ParseAuthType(s string) (string, error) {
	switch t := strings.ToLower(strings.TrimSpace(s)); t {
	case "":
		return AuthNone, nil
	case AuthNone, AuthBearer, AuthBasic:
		return t, nil
	default:
		return "", fmt.Errorf("unknown auth type %q (want none, bearer or basic)", s)
	}
}

// SecureCompareString performs constant-time string comparison
func SecureCompareString(a, b string) bool {
	aBytes := []byte(a)
	bBytes := []byte(b)

	if len(aBytes) != len(bBytes) {
		return false
	}

	return subtle.ConstantTimeCompare(aBytes, bBytes) == 1
}

var weakTokens = []string{
	"password", "secret", "token", "admin", "test", "default",
	"12345", "123456", "password123", "secret123", "admin123",
	"ecoroute",
}

// ValidateAuthToken rejects empty, short or guessable tokens
func ValidateAuthToken(token string) error {
	if token == "" {
		return NewError(ErrInvalidParameter, "Authentication token cannot be empty").
			WithGuidance("Provide a valid authentication token for security.")
	}

	if len(token) < 16 {
		return NewError(ErrInvalidParameter, "Authentication token is too short").
			WithGuidance("Use a token with at least 16 characters for security.")
	}

	lowerToken := strings.ToLower(token)
	for _, weak := range weakTokens {
		if strings.Contains(lowerToken, weak) {
			return NewError(ErrInvalidParameter, "Authentication token appears to be weak").
				WithGuidance("Use a randomly generated, strong authentication token.")
		}
	}

	return nil
}

// AuthResult represents the result of authentication
type AuthResult struct {
	Authorized bool
	Error      string
	Duration   time.Duration
}

// Authenticate checks r against the configured scheme. For basic auth,
// expected holds "user:password".
func Authenticate(r *http.Request, authType, expected string) AuthResult {
	switch authType {
	case AuthNone, "":
		return AuthResult{Authorized: true}
	case AuthBearer:
		return AuthenticateBearer(r.Header.Get("Authorization"), expected)
	case AuthBasic:
		username, password, ok := r.BasicAuth()
		if !ok {
			return AuthResult{Error: "Missing basic auth credentials"}
		}
		return AuthenticateBasic(username, password, expected)
	default:
		return AuthResult{Error: "Unknown auth type"}
	}
}

// AuthenticateBearer performs bearer token authentication
func AuthenticateBearer(authHeader, expectedToken string) AuthResult {
	start := time.Now()
	// Flatten response timing between failure modes
	defer time.Sleep(1 * time.Millisecond)

	if authHeader == "" {
		return AuthResult{
			Error:    "Missing Authorization header",
			Duration: time.Since(start),
		}
	}

	scheme, token, found := strings.Cut(authHeader, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return AuthResult{
			Error:    "Invalid Authorization header format",
			Duration: time.Since(start),
		}
	}

	if !SecureCompareString(token, expectedToken) {
		return AuthResult{
			Error:    "Invalid bearer token",
			Duration: time.Since(start),
		}
	}

	return AuthResult{
		Authorized: true,
		Duration:   time.Since(start),
	}
}

// AuthenticateBasic performs basic authentication against "user:password"
func AuthenticateBasic(username, password, expectedCredentials string) AuthResult {
	start := time.Now()
	defer time.Sleep(1 * time.Millisecond)

	if username == "" || password == "" {
		return AuthResult{
			Error:    "Missing basic auth credentials",
			Duration: time.Since(start),
		}
	}

	if !SecureCompareString(username+":"+password, expectedCredentials) {
		return AuthResult{
			Error:    "Invalid basic auth credentials",
			Duration: time.Since(start),
		}
	}

	return AuthResult{
		Authorized: true,
		Duration:   time.Since(start),
	}
}
