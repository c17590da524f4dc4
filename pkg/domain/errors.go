package domain

import "errors"

// Authentication errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked due to too many failed login attempts")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
	ErrSessionRevoked     = errors.New("session revoked")
	ErrSessionFingerprint = errors.New("session fingerprint mismatch - possible token theft")
	ErrInvalidToken       = errors.New("invalid token")
)

// Access gate errors
var (
	ErrUserBanned     = errors.New("user is banned")
	ErrBanCheckFailed = errors.New("unable to verify ban status")
	ErrAdminRequired  = errors.New("admin access required")
)

// Beta key errors
var (
	ErrInvalidKey           = errors.New("beta key not found or inactive")
	ErrKeyExpired           = errors.New("beta key expired")
	ErrKeyQuotaExceeded     = errors.New("beta key usage quota exceeded")
	ErrKeyAlreadyUsed       = errors.New("beta key already used from this browser")
	ErrConcurrentRedemption = errors.New("beta key was just redeemed by someone else")
)

// Validation errors
var (
	ErrInvalidEmail    = errors.New("invalid email address")
	ErrWeakPassword    = errors.New("password does not meet requirements")
	ErrInvalidTOTPCode = errors.New("invalid TOTP code")
	ErrTOTPRequired    = errors.New("TOTP code required for this account")
)
