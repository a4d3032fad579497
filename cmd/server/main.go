package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/pkg/errors"

	"github.com/Spycrab06/snailmail/internal/config"
	"github.com/Spycrab06/snailmail/internal/database"
	"github.com/Spycrab06/snailmail/internal/handler"
	"github.com/Spycrab06/snailmail/internal/logging"
	"github.com/Spycrab06/snailmail/internal/middleware"
	"github.com/Spycrab06/snailmail/internal/queue"
	"github.com/Spycrab06/snailmail/internal/repository"
	"github.com/Spycrab06/snailmail/internal/router"
	"github.com/Spycrab06/snailmail/internal/service"
	"github.com/Spycrab06/snailmail/internal/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "snailmail: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logging.New(os.Stdout, cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(log)
	if cfg.DevSecret {
		log.Warn("JWT_SECRET not set, signing sessions with the public development secret", "env", cfg.Env)
	}

	rlCfg, err := config.LoadRateLimitConfig()
	if err != nil {
		return err
	}
	cacheCfg, err := config.LoadCacheConfig()
	if err != nil {
		return err
	}
	redisCfg, err := config.LoadRedisConfig()
	if err != nil {
		return err
	}

	pool, err := database.Open(cfg.DB)
	if err != nil {
		return errors.Wrap(err, "connect database")
	}
	defer func() {
		if err := pool.Close(); err != nil {
			log.Error("close database pool", "err", err)
		}
	}()
	log.Info("database pool ready", "size", cfg.DB.PoolSize,
		"acquire_timeout", cfg.DB.AcquireTimeout, "tx_timeout", cfg.DB.TxTimeout)

	hasher, err := utils.NewPasswordHasher(cfg.PasswordHashing, cfg.BcryptCost)
	if err != nil {
		return err
	}

	accounts := service.NewAccountService(
		repository.NewAccountRepo(pool),
		hasher,
		queue.NewPublisher(cfg.AMQPURL, log),
		service.AccountConfig{
			JWTSecret:     cfg.JWTSecret,
			SessionTTLMin: cfg.SessionTTLMin,
			StrictAddress: cfg.StrictAddress,
		},
		log,
	)
	customers := service.NewCustomerService(repository.NewCustomerRepo(pool))

	// Redis backs the optional rate limiter and read cache. Without it both
	// pass requests straight through.
	var deps router.Deps
	if rlCfg.Enabled || cacheCfg.Enabled {
		if rdb := config.NewRedisClient(redisCfg, log); rdb != nil {
			defer rdb.Close()
			deps.RateLimit = middleware.NewRateLimiter(rlCfg, rdb, log).Bucket
			deps.ReadCache = middleware.NewRedisCache(cacheCfg, rdb, log)
			log.Info("redis ready", "addr", redisCfg.Addr, "rate_limit", rlCfg.Enabled, "cache", cacheCfg.Enabled)
		}
	}

	e := router.New(log)
	deps.BasePath = cfg.BasePath
	deps.JWTSecret = cfg.JWTSecret
	deps.SessionRequired = cfg.SessionRequired
	deps.DB = pool
	deps.Accounts = handler.NewAccountHandler(accounts)
	deps.Customers = handler.NewCustomerHandler(customers)
	deps.Log = log
	router.Register(e, deps)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var workers sync.WaitGroup
	if cfg.ConsumerEnabled && cfg.AMQPURL != "" {
		consumer := &queue.Consumer{URL: cfg.AMQPURL, LogDir: cfg.RegistrationLogDir, Log: log}
		workers.Add(1)
		go func() {
			defer workers.Done()
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("registration consumer stopped", "err", err)
			}
		}()
	}

	addr := ":" + cfg.Port
	serveErr := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", addr, "env", cfg.Env, "base_path", cfg.BasePath,
			"session_required", cfg.SessionRequired)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		stop()
		workers.Wait()
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
	}

	log.Info("shutting down", "timeout", cfg.ShutdownTimeout)
	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		log.Error("http shutdown", "err", err)
	}
	workers.Wait()
	accounts.Wait()
	return nil
}
