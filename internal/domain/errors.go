package domain

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrNoIndustryAssigned = errors.New("no industry specified")
	ErrUnknownIndustry    = errors.New("industry not found")
	ErrNoHistory          = errors.New("no insight history")
	ErrDeliveryFailed     = errors.New("delivery failed")
)

var (
	ErrAuthRequired = errors.New("authentication required")
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("invalid token")
)
