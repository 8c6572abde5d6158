package domain

import (
	"errors"
	"time"
)

// ErrNoCredentials is returned by credential providers that could not obtain
// a usable key for the current session.
var ErrNoCredentials = errors.New("domain: no credentials for session")

// Credentials are short-lived signing credentials vended for an
// authenticated session. They are held in memory only.
type Credentials struct {
	AccessKeyID  string
	SecretKey    string
	SessionToken string
	Expiration   time.Time
}

// Expired reports whether the credentials are past their expiration. A zero
// expiration never expires.
func (c Credentials) Expired(now time.Time) bool {
	if c.Expiration.IsZero() {
		return false
	}
	return !now.Before(c.Expiration)
}
