package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/Spycrab06/snailmail/internal/config"
)

// cachedResponse is what a cache entry holds. Only the content type is kept
// from the headers; per-request headers (request id, CORS, rate limit) are
// set again by the middleware stack on every hit.
type cachedResponse struct {
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// teeWriter copies the response body aside until it outgrows limit, then
// drops the copy and only forwards.
type teeWriter struct {
	http.ResponseWriter
	body     bytes.Buffer
	limit    int
	overflow bool
}

func (w *teeWriter) Write(b []byte) (int, error) {
	if !w.overflow {
		if w.body.Len()+len(b) > w.limit {
			w.overflow = true
			w.body.Reset()
		} else {
			w.body.Write(b)
		}
	}
	return w.ResponseWriter.Write(b)
}

// cacheKey scopes an entry to the route, the session subject ("anon" when
// sessions are off) and the query with parameters sorted, so
// ?authId=1&x=2 and ?x=2&authId=1 share an entry.
func cacheKey(prefix string, c echo.Context) string {
	sum := sha1.Sum([]byte(c.Request().URL.Query().Encode()))
	return prefix + ":" + strings.TrimPrefix(c.Path(), "/") + ":" + currentUserID(c) + ":" + hex.EncodeToString(sum[:8])
}

// NewRedisCache replays successful profile reads. Only complete 200
// responses are stored; errors pass through uncached so a transient database
// failure is never pinned for the TTL.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client, log *slog.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passthrough
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cfg.Methods[c.Request().Method] {
				return next(c)
			}
			ctx := c.Request().Context()
			key := cacheKey(cfg.Prefix, c)
			res := c.Response()

			if raw, err := rdb.Get(ctx, key).Bytes(); err == nil {
				var hit cachedResponse
				if json.Unmarshal(raw, &hit) == nil {
					res.Header().Set("X-Cache", "HIT")
					return c.Blob(http.StatusOK, hit.ContentType, hit.Body)
				}
				log.Warn("cache: dropping unreadable entry", "key", key)
			} else if !errors.Is(err, redis.Nil) {
				log.Warn("cache: lookup failed", "key", key, "err", err)
			}

			tee := &teeWriter{ResponseWriter: res.Writer, limit: cfg.MaxBodyBytes}
			res.Writer = tee
			res.Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}
			if res.Status != http.StatusOK || tee.overflow {
				return nil
			}
			entry, err := json.Marshal(cachedResponse{
				ContentType: res.Header().Get(echo.HeaderContentType),
				Body:        tee.body.Bytes(),
			})
			if err != nil {
				return nil
			}
			if err := rdb.Set(context.WithoutCancel(ctx), key, entry, cfg.TTL).Err(); err != nil {
				log.Warn("cache: store failed", "key", key, "err", err)
			}
			return nil
		}
	}
}
