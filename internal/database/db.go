package database

import (
	"context"
	"database/sql"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"

	"github.com/Spycrab06/snailmail/internal/config"
)

// DSN turns the configured connection settings into a go-sql-driver DSN.
// DATABASE_URL may be a mysql:// URL or already a driver DSN.
func DSN(cfg config.DBConfig) (string, error) {
	mc := mysql.NewConfig()
	if cfg.URL != "" {
		if !strings.Contains(cfg.URL, "://") {
			parsed, err := mysql.ParseDSN(cfg.URL)
			if err != nil {
				return "", errors.Wrap(err, "parse DATABASE_URL")
			}
			mc = parsed
		} else {
			u, err := url.Parse(cfg.URL)
			if err != nil {
				return "", errors.Wrap(err, "parse DATABASE_URL")
			}
			if u.Scheme != "mysql" {
				return "", errors.Errorf("unsupported DATABASE_URL scheme %q", u.Scheme)
			}
			mc.User = u.User.Username()
			mc.Passwd, _ = u.User.Password()
			port := u.Port()
			if port == "" {
				port = "3306"
			}
			mc.Net = "tcp"
			mc.Addr = net.JoinHostPort(u.Hostname(), port)
			mc.DBName = strings.TrimPrefix(u.Path, "/")
		}
	} else {
		mc.User = cfg.User
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.Host, cfg.Port)
		mc.DBName = cfg.Name
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	mc.ParseTime = true
	mc.Loc = time.UTC
	if mc.Params == nil {
		mc.Params = map[string]string{}
	}
	if _, ok := mc.Params["charset"]; !ok {
		mc.Params["charset"] = "utf8mb4"
	}
	return mc.FormatDSN(), nil
}

// Open connects to MySQL, sizes the pool and verifies the connection.
func Open(cfg config.DBConfig) (*Pool, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open mysql")
	}

	db.SetMaxOpenConns(cfg.PoolSize)
	db.SetMaxIdleConns(cfg.PoolSize)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping mysql")
	}
	return NewPool(db, cfg.AcquireTimeout, cfg.TxTimeout), nil
}
