package models

import "time"

// User is an account mirrored from the identity provider
type User struct {
	ID         string    `json:"id" badgerhold:"key"`
	GivenName  string    `json:"given_name"`
	FamilyName string    `json:"family_name"`
	Username   string    `json:"username" badgerhold:"index"`
	Email      string    `json:"email" badgerhold:"index"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// UserCreate carries the attributes needed to register a user
type UserCreate struct {
	ID         string `json:"id" validate:"required,max=50"`
	GivenName  string `json:"given_name" validate:"max=200"`
	FamilyName string `json:"family_name" validate:"max=200"`
	Username   string `json:"username" validate:"required,max=200"`
	Email      string `json:"email" validate:"required,max=200"`
}
