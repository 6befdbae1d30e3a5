package models

import "time"

// Credential is the bearer token currently granted by the authorization provider.
type Credential struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// Valid reports whether an access token is held.
func (c *Credential) Valid() bool {
	return c != nil && c.AccessToken != ""
}

// ExpiresWithin reports whether the credential is missing or expires within margin of now.
func (c *Credential) ExpiresWithin(now time.Time, margin time.Duration) bool {
	if !c.Valid() || c.Expiry.IsZero() {
		return true
	}
	return !now.Before(c.Expiry.Add(-margin))
}
