package options

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/pflag"
)

var _ IOptions = (*PrefsOptions)(nil)

const (
	PrefsBackendFile   = "file"
	PrefsBackendRedis  = "redis"
	PrefsBackendMemory = "memory"
)

// PrefsOptions selects where user preferences are persisted.
type PrefsOptions struct {
	Backend string `json:"backend" mapstructure:"backend"`

	// Path of the preferences file for the file backend. Its extension
	// picks the format.
	Path string `json:"path" mapstructure:"path"`

	RedisAddr     string `json:"redis-addr" mapstructure:"redis-addr"`
	RedisPassword string `json:"redis-password" mapstructure:"redis-password"`
	RedisDB       int    `json:"redis-db" mapstructure:"redis-db"`
	RedisHash     string `json:"redis-hash" mapstructure:"redis-hash"`
}

func NewPrefsOptions() *PrefsOptions {
	return &PrefsOptions{
		Backend:   PrefsBackendFile,
		Path:      "kintsugi-prefs.yaml",
		RedisAddr: "localhost:6379",
		RedisHash: "kintsugi:prefs",
	}
}

func (o *PrefsOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	switch o.Backend {
	case PrefsBackendFile:
		if filepath.Ext(o.Path) == "" {
			errs = append(errs, fmt.Errorf("prefs.path %q needs a file extension", o.Path))
		}
	case PrefsBackendRedis:
		if err := ValidateAddress(o.RedisAddr); err != nil {
			errs = append(errs, err)
		}
		if o.RedisHash == "" {
			errs = append(errs, fmt.Errorf("prefs.redis-hash must not be empty"))
		}
	case PrefsBackendMemory:
	default:
		errs = append(errs, fmt.Errorf("prefs.backend %q must be file, redis or memory", o.Backend))
	}
	return errs
}

func (o *PrefsOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	name := func(n string) string { return join(prefixes, "prefs", n) }

	fs.StringVar(&o.Backend, name("backend"), o.Backend, "Preference storage: file, redis or memory.")
	fs.StringVar(&o.Path, name("path"), o.Path, "Preferences file for the file backend.")
	fs.StringVar(&o.RedisAddr, name("redis-addr"), o.RedisAddr, "Redis address for the redis backend.")
	fs.StringVar(&o.RedisPassword, name("redis-password"), o.RedisPassword, "Redis password.")
	fs.IntVar(&o.RedisDB, name("redis-db"), o.RedisDB, "Redis database number.")
	fs.StringVar(&o.RedisHash, name("redis-hash"), o.RedisHash, "Redis hash holding the preferences.")
}
