package config

import (
	"strconv"
	"strings"
	"time"
)

// Rate-limit bucket names, one per credential endpoint.
const (
	BucketLogin      = "login"
	BucketCheckEmail = "check_email"
	BucketSignUp     = "sign_up"
)

// Rate is a token bucket: Burst requests at once, then one more every Every.
type Rate struct {
	Burst int
	Every time.Duration
}

func (r Rate) String() string { return strconv.Itoa(r.Burst) + "/" + r.Every.String() }

// RateLimitConfig drives the Redis token buckets in front of /login,
// /checkEmail and /userSignUp. Every endpoint has its own bucket per client
// IP, so the sign-up wizard polling /checkEmail cannot lock a user out of
// /login.
type RateLimitConfig struct {
	Enabled bool
	Prefix  string
	Debug   bool
	Buckets map[string]Rate
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables. Bucket rates are written
// BURST/EVERY, e.g. RATE_LIMIT_LOGIN=10/6s.
func LoadRateLimitConfig() (RateLimitConfig, error) {
	r := &envReader{}
	cfg := RateLimitConfig{
		Enabled: r.Bool("RATE_LIMIT_ENABLED", true),
		Prefix:  envStr("RATE_LIMIT_PREFIX", "snailmail:rl"),
		Debug:   r.Bool("RATE_LIMIT_DEBUG", false),
		Buckets: map[string]Rate{
			// a few typos, then one attempt every 6s
			BucketLogin: r.Rate("RATE_LIMIT_LOGIN", Rate{Burst: 10, Every: 6 * time.Second}),
			// the wizard rechecks as the user edits the field
			BucketCheckEmail: r.Rate("RATE_LIMIT_CHECK_EMAIL", Rate{Burst: 30, Every: time.Second}),
			// accounts are created rarely from one address
			BucketSignUp: r.Rate("RATE_LIMIT_SIGN_UP", Rate{Burst: 5, Every: time.Minute}),
		},
	}
	return cfg, r.Err()
}

// Rate parses BURST/EVERY. Both parts must be positive.
func (r *envReader) Rate(key string, d Rate) Rate {
	v := envStr(key, "")
	if v == "" {
		return d
	}
	burst, every, ok := strings.Cut(v, "/")
	n, err := strconv.Atoi(strings.TrimSpace(burst))
	if !ok || err != nil || n < 1 {
		r.fail(key, "rate", v)
		return d
	}
	dur, err := time.ParseDuration(strings.TrimSpace(every))
	if err != nil || dur <= 0 {
		r.fail(key, "rate", v)
		return d
	}
	return Rate{Burst: n, Every: dur}
}
