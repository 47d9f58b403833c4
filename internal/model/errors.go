package model

import "errors"

// Error taxonomy shared by the market client, connectivity manager and controller.
var (
	// ErrNetwork covers transport failures, timeouts and non-200 replies.
	ErrNetwork = errors.New("network error")
	// ErrParse covers malformed or out-of-range response bodies.
	ErrParse = errors.New("parse error")
	// ErrValidation covers empty or missing request fields.
	ErrValidation = errors.New("validation error")
	// ErrConnect covers WiFi association failures.
	ErrConnect = errors.New("connect error")
)
