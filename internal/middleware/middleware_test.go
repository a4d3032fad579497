package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spycrab06/snailmail/internal/apperr"
	"github.com/Spycrab06/snailmail/internal/config"
	"github.com/Spycrab06/snailmail/internal/logging"
	"github.com/Spycrab06/snailmail/internal/model"
	"github.com/Spycrab06/snailmail/internal/utils"
)

const secret = "mw-secret"

func newContext(method, target string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func ok(c echo.Context) error { return c.NoContent(http.StatusNoContent) }

func bearer(t *testing.T, authID uint64, at model.AccountType) string {
	t.Helper()
	tok, err := utils.NewSessionToken(secret, authID, at, 5)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func TestRequireSession(t *testing.T) {
	t.Run("missing header", func(t *testing.T) {
		c, _ := newContext(http.MethodGet, "/")
		err := RequireSession(secret)(ok)(c)
		assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
	})
	t.Run("bad token", func(t *testing.T) {
		c, _ := newContext(http.MethodGet, "/")
		c.Request().Header.Set(echo.HeaderAuthorization, "Bearer nope")
		err := RequireSession(secret)(ok)(c)
		assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
	})
	t.Run("valid", func(t *testing.T) {
		c, rec := newContext(http.MethodGet, "/")
		c.Request().Header.Set(echo.HeaderAuthorization, bearer(t, 9, model.AccountBusiness))
		require.NoError(t, RequireSession(secret)(ok)(c))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		id, found := SessionAuthID(c)
		assert.True(t, found)
		assert.Equal(t, uint64(9), id)
	})
}

func TestRequireAreaAndSubject(t *testing.T) {
	chain := func(h echo.HandlerFunc) echo.HandlerFunc {
		return RequireSession(secret)(RequireArea(model.AreaCustomer)(RequireSubject("authId")(h)))
	}

	c, _ := newContext(http.MethodGet, "/getCustomerData?authId=9")
	c.Request().Header.Set(echo.HeaderAuthorization, bearer(t, 9, model.AccountPrime))
	assert.NoError(t, chain(ok)(c))

	c, _ = newContext(http.MethodGet, "/getCustomerData?authId=10")
	c.Request().Header.Set(echo.HeaderAuthorization, bearer(t, 9, model.AccountPrime))
	assert.True(t, apperr.Is(chain(ok)(c), apperr.KindForbidden), "other account")

	c, _ = newContext(http.MethodGet, "/getCustomerData?authId=9")
	c.Request().Header.Set(echo.HeaderAuthorization, bearer(t, 9, model.AccountManager))
	assert.True(t, apperr.Is(chain(ok)(c), apperr.KindForbidden), "manager area")
}

func TestRequestLogger_LevelByStatus(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	e := echo.New()
	e.Use(RequestLogger(log))
	e.GET("/fine", ok)
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusInternalServerError, "x") })

	for _, path := range []string{"/fine", "/boom", "/missing"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"level":"INFO"`)
	assert.Contains(t, lines[0], `"status":204`)
	assert.Contains(t, lines[1], `"level":"ERROR"`)
	assert.Contains(t, lines[1], `"status":500`)
	assert.Contains(t, lines[2], `"level":"WARN"`)
	assert.Contains(t, lines[2], `"status":404`)
}

func TestLimiterAndCacheWithoutRedisPassThrough(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{Enabled: true}, nil, logging.Discard())
	assert.Nil(t, rl)
	cache := NewRedisCache(config.CacheConfig{Enabled: true}, nil, logging.Discard())

	c, rec := newContext(http.MethodGet, "/")
	require.NoError(t, rl.Bucket(config.BucketLogin)(cache(ok))(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestNewRateLimiter_Disabled(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer rdb.Close()
	assert.Nil(t, NewRateLimiter(config.RateLimitConfig{Enabled: false}, rdb, logging.Discard()))
}

func TestRateLimiter_UnknownBucketIsNotLimited(t *testing.T) {
	l := &RateLimiter{
		cfg: config.RateLimitConfig{Enabled: true, Buckets: map[string]config.Rate{
			config.BucketLogin: {Burst: 1, Every: time.Second},
		}},
		log: logging.Discard(),
	}
	c, rec := newContext(http.MethodPost, "/nope")
	require.NoError(t, l.Bucket("nope")(ok)(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestBucketKeyIsPerRouteGroupAndIP(t *testing.T) {
	assert.Equal(t, "snailmail:rl:login:10.0.0.7", bucketKey("snailmail:rl", config.BucketLogin, "10.0.0.7"))
	assert.NotEqual(t,
		bucketKey("snailmail:rl", config.BucketLogin, "10.0.0.7"),
		bucketKey("snailmail:rl", config.BucketSignUp, "10.0.0.7"))
	assert.Equal(t, "p:login:unknown", bucketKey("p", config.BucketLogin, ""))
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 0, retryAfterSeconds(0))
	assert.Equal(t, 0, retryAfterSeconds(-5))
	assert.Equal(t, 1, retryAfterSeconds(1))
	assert.Equal(t, 1, retryAfterSeconds(1000))
	assert.Equal(t, 2, retryAfterSeconds(1500))
}

func TestCacheKeyIncludesSubjectAndQuery(t *testing.T) {
	key := func(target string, authID uint64) string {
		c, _ := newContext(http.MethodGet, target)
		c.SetPath("/getCustomerData")
		if authID != 0 {
			c.Set(ctxAuthID, authID)
		}
		return cacheKey("p", c)
	}

	a := key("/getCustomerData?authId=1&x=2", 0)
	assert.True(t, strings.HasPrefix(a, "p:getCustomerData:anon:"), a)
	assert.Equal(t, a, key("/getCustomerData?x=2&authId=1", 0), "query order is irrelevant")
	assert.NotEqual(t, a, key("/getCustomerData?authId=2&x=2", 0))

	withSession := key("/getCustomerData?authId=1&x=2", 1)
	assert.True(t, strings.HasPrefix(withSession, "p:getCustomerData:1:"), withSession)
}

func TestTeeWriterDropsCopyOnOverflow(t *testing.T) {
	rec := httptest.NewRecorder()
	w := &teeWriter{ResponseWriter: rec, limit: 4}
	_, _ = w.Write([]byte("abc"))
	assert.False(t, w.overflow)
	assert.Equal(t, "abc", w.body.String())

	_, _ = w.Write([]byte("def"))
	assert.True(t, w.overflow)
	assert.Zero(t, w.body.Len())
	assert.Equal(t, "abcdef", rec.Body.String(), "client still gets the whole body")
}
