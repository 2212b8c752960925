// Package prefs persists user preferences consumed by the telemetry feed.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/afnaayusuf/kintsugi/pkg/log"
)

// KeyUpdateInterval holds the polling interval in milliseconds.
const KeyUpdateInterval = "telemetry_update_interval"

// DefaultUpdateInterval applies when no valid interval is stored.
const DefaultUpdateInterval = 2 * time.Second

// AllowedIntervals are the only polling intervals a user may choose.
var AllowedIntervals = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	5 * time.Second,
	10 * time.Second,
	30 * time.Second,
	60 * time.Second,
}

var ErrInvalidInterval = errors.New("update interval must be one of 1000, 2000, 5000, 10000, 30000, 60000 ms")

// Store is a string key/value store. Get reports whether key was present.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// ParseInterval parses a millisecond value and checks it is allowed.
func ParseInterval(v string) (time.Duration, error) {
	ms, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidInterval, v)
	}
	d := time.Duration(ms) * time.Millisecond
	if !slices.Contains(AllowedIntervals, d) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidInterval, ms)
	}
	return d, nil
}

// UpdateInterval returns the stored polling interval, or the default when
// it is absent, unreadable or not one of the allowed values.
func UpdateInterval(ctx context.Context, s Store) time.Duration {
	if s == nil {
		return DefaultUpdateInterval
	}

	v, ok, err := s.Get(ctx, KeyUpdateInterval)
	if err != nil {
		log.Error(err, "Failed to read update interval, using default", "default", DefaultUpdateInterval)
		return DefaultUpdateInterval
	}
	if !ok {
		return DefaultUpdateInterval
	}

	d, err := ParseInterval(v)
	if err != nil {
		log.Warn("Ignoring stored update interval", "value", v, "error", err)
		return DefaultUpdateInterval
	}
	return d
}

// SetUpdateInterval validates and stores d. It takes effect the next time
// a polling source starts.
func SetUpdateInterval(ctx context.Context, s Store, d time.Duration) error {
	if !slices.Contains(AllowedIntervals, d) {
		return fmt.Errorf("%w: %d", ErrInvalidInterval, d.Milliseconds())
	}
	return s.Set(ctx, KeyUpdateInterval, strconv.FormatInt(d.Milliseconds(), 10))
}
