package ports

import "time"

// AuthClaims is the subset of an auth-service access token this service relies on.
type AuthClaims struct {
	SubjectID string
	Role      string
	SessionID string
	ExpiresAt time.Time
}

type TokenVerifier interface {
	Verify(token string) (AuthClaims, error)
}
