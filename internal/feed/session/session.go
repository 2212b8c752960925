// Package session turns a bearer credential into a feed session.
package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/afnaayusuf/kintsugi/internal/feed/core"
	"github.com/afnaayusuf/kintsugi/pkg/log"
)

// DemoPrefix marks simulation credentials when the mode setting is auto.
const DemoPrefix = "demo_"

// ModeSetting is the configured way of choosing a session's data source mode.
type ModeSetting string

const (
	ModeAuto       ModeSetting = "auto"
	ModeSimulation ModeSetting = "simulation"
	ModeLive       ModeSetting = "live"
)

// ParseModeSetting validates a configured mode setting.
func ParseModeSetting(v string) (ModeSetting, error) {
	switch m := ModeSetting(strings.ToLower(strings.TrimSpace(v))); m {
	case ModeAuto, ModeSimulation, ModeLive:
		return m, nil
	case "":
		return ModeAuto, nil
	default:
		return "", fmt.Errorf("unknown data source mode %q (want auto, simulation or live)", v)
	}
}

// Resolver decides the mode of a new session. The decision is made once
// here and carried in core.Session; nothing downstream re-inspects the token.
type Resolver struct {
	setting ModeSetting
	now     func() time.Time
}

func NewResolver(setting ModeSetting) *Resolver {
	if setting == "" {
		setting = ModeAuto
	}
	return &Resolver{setting: setting, now: time.Now}
}

// Resolve validates token and returns the session it opens. Live tokens
// that are JWTs are checked for expiry only; signature verification is the
// backend's job. Opaque tokens are accepted as they are.
func (r *Resolver) Resolve(token string) (core.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return core.Session{}, fmt.Errorf("%w: empty token", core.ErrInvalidCredential)
	}

	sess := core.Session{Token: token, Mode: r.mode(token)}
	if sess.Mode == core.ModeSimulation {
		sess.Subject = "demo"
		return sess, nil
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		log.Debug("Credential is not a JWT, treating it as opaque")
		return sess, nil
	}

	sess.Subject = claims.Subject
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
		if !sess.ExpiresAt.After(r.now()) {
			return core.Session{}, fmt.Errorf("%w: expired at %s", core.ErrCredentialExpired, sess.ExpiresAt.Format(time.RFC3339))
		}
	}
	return sess, nil
}

func (r *Resolver) mode(token string) core.Mode {
	switch r.setting {
	case ModeSimulation:
		return core.ModeSimulation
	case ModeLive:
		return core.ModeLive
	default:
		if strings.HasPrefix(token, DemoPrefix) {
			return core.ModeSimulation
		}
		return core.ModeLive
	}
}
