package config

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// envReader reads typed variables and keeps every parse failure, so a bad
// deployment is reported in one go instead of one variable per restart.
// Unset or empty variables take the default; set but unparsable ones are
// errors, never silently defaulted.
type envReader struct {
	err error
}

func (r *envReader) fail(key, kind, raw string) {
	r.err = multierr.Append(r.err, errors.Errorf("invalid %s for %s: %q", kind, key, raw))
}

func (r *envReader) Bool(key string, d bool) bool {
	v := os.Getenv(key)
	switch v {
	case "":
		return d
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	r.fail(key, "bool", v)
	return d
}

func (r *envReader) Int(key string, d int) int {
	v := os.Getenv(key)
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, "int", v)
		return d
	}
	return n
}

func (r *envReader) Dur(key string, d time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return d
	}
	dur, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, "duration", v)
		return d
	}
	return dur
}

// Err returns all collected failures combined, or nil.
func (r *envReader) Err() error { return r.err }

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
