package dashboard

import "errors"

var (
	ErrUnauthenticated = errors.New("not authenticated")
	ErrUnknownVehicle  = errors.New("unknown vehicle")
)
