package core

import "errors"

var (
	// ErrTransport covers real-time connect failures and abnormal closes.
	ErrTransport = errors.New("telemetry transport failure")

	// ErrReconnectExhausted is reported once the socket gives up reconnecting.
	ErrReconnectExhausted = errors.New("telemetry transport reconnect attempts exhausted")

	// ErrFetch covers network errors, non-2xx statuses and undecodable bodies.
	ErrFetch = errors.New("telemetry fetch failed")

	// ErrNullPayload means the backend answered but has no telemetry for the vehicle.
	ErrNullPayload = errors.New("backend returned no telemetry")

	// ErrMalformedFrame is a real-time frame that is not a valid {type, payload} object.
	ErrMalformedFrame = errors.New("malformed telemetry frame")

	ErrInvalidCredential = errors.New("invalid credential")
	ErrCredentialExpired = errors.New("credential expired")
)
