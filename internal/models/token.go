package models

import "time"

// RevokedToken marks a bearer token as signed out until it would have expired
type RevokedToken struct {
	TokenHash string    `json:"token_hash" badgerhold:"key"`
	ExpiresAt time.Time `json:"expires_at" badgerhold:"index"`
	RevokedAt time.Time `json:"revoked_at"`
}
