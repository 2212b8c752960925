package options

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		addr    string
		wantErr bool
	}{
		{"0.0.0.0:8088", false},
		{":8088", false},
		{"localhost:6379", false},
		{"localhost", true},
		{"localhost:http", true},
		{"localhost:70000", true},
		{"bad host:80", true},
	}
	for _, tt := range tests {
		err := ValidateAddress(tt.addr)
		assert.Equal(t, tt.wantErr, err != nil, tt.addr)
	}
}

func TestDefaultsAreValid(t *testing.T) {
	for _, o := range []IOptions{NewHttpOptions(), NewMqttOptions(), NewFeedOptions(), NewPrefsOptions()} {
		assert.Empty(t, o.Validate())
	}
}

func TestFeedOptionsValidate(t *testing.T) {
	o := NewFeedOptions()
	o.APIBaseURL = "ftp://example.com"
	o.WSBaseURL = "http://example.com"
	o.Mode = "replay"
	o.FailureThreshold = 0
	assert.Len(t, o.Validate(), 4)
}

func TestMqttOptionsOnlyValidatedWhenEnabled(t *testing.T) {
	o := NewMqttOptions()
	o.Broker = "not a url"
	assert.Empty(t, o.Validate())

	o.Enabled = true
	assert.Len(t, o.Validate(), 1)

	cfg := NewMqttOptions().ToClientConfig()
	assert.Equal(t, uint16(60), cfg.KeepAlive)
	assert.Equal(t, "kintsugi-feed", cfg.ClientID)
}

func TestPrefsOptionsValidate(t *testing.T) {
	o := NewPrefsOptions()
	o.Path = "prefs"
	assert.Len(t, o.Validate(), 1)

	o = NewPrefsOptions()
	o.Backend = PrefsBackendRedis
	o.RedisAddr = "nope"
	assert.Len(t, o.Validate(), 1)

	o.Backend = "etcd"
	assert.Len(t, o.Validate(), 1)
}

func TestAddFlagsWithPrefix(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o := NewHttpOptions()
	o.AddFlags(fs, "dashboard")

	require.NoError(t, fs.Parse([]string{"--dashboard.addr=127.0.0.1:9999"}))
	assert.Equal(t, "127.0.0.1:9999", o.Addr)
	assert.Nil(t, fs.Lookup("http.addr"))
}
