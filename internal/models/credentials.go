package models

import "time"

// CredentialPair is the access/refresh token pair issued by the core API.
// Both are opaque bearer JWTs with an embedded expiry claim. The access token
// is short-lived; the refresh token outlives it and is only sent to the
// refresh endpoint.
type CredentialPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	IssuedAt     time.Time `json:"issued_at"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
