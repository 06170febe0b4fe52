package services

import "errors"

var (
	ErrConfig     = errors.New("server is not configured correctly")
	ErrForbidden  = errors.New("you do not have permission to perform this action")
	ErrValidation = errors.New("invalid request")
	ErrNotFound   = errors.New("record not found")

	ErrInvalidPassword     = errors.New("invalid password")
	ErrLoginDenied         = errors.New("access denied: your account type cannot log in")
	ErrResetUnavailable    = errors.New("password reset is not available for this account type")
	ErrNoTelegram          = errors.New("this account has no Telegram ID configured")
	ErrTelegramMismatch    = errors.New("incorrect Telegram ID for this user")
	ErrUsernameTaken       = errors.New("username already exists")
	ErrInsufficientCredits = errors.New("insufficient credits")

	ErrResendThrottled = errors.New("please wait 60 seconds before requesting another OTP")
	ErrTooManyAttempts = errors.New("too many incorrect attempts, OTP has been invalidated")
	ErrCodeExpired     = errors.New("OTP is invalid or has expired")
	ErrCodeIncorrect   = errors.New("incorrect OTP")

	// ErrPartialBatch wraps the upstream error of a bulk update that stopped midway.
	ErrPartialBatch = errors.New("bulk update stopped before all records were written")
)
