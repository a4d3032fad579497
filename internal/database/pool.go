package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// ErrAcquireTimeout is returned when no pooled connection frees up in time.
// It also matches context.DeadlineExceeded.
var ErrAcquireTimeout = errors.New("database: connection acquire timed out")

// Pool is the process-wide connection pool shared by every repository.
type Pool struct {
	DB             *sql.DB
	AcquireTimeout time.Duration
	TxTimeout      time.Duration
}

func NewPool(db *sql.DB, acquire, tx time.Duration) *Pool {
	return &Pool{DB: db, AcquireTimeout: acquire, TxTimeout: tx}
}

// Acquire borrows one connection. The caller must Close it to return it.
func (p *Pool) Acquire(ctx context.Context) (*sql.Conn, error) {
	actx, cancel := context.WithTimeout(ctx, p.AcquireTimeout)
	defer cancel()
	conn, err := p.DB.Conn(actx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %w", ErrAcquireTimeout, context.DeadlineExceeded)
		}
		return nil, errors.Wrap(err, "acquire connection")
	}
	return conn, nil
}

// InTx runs fn inside a transaction on a single borrowed connection. The
// transaction commits only when fn returns nil; every other path rolls back.
// The connection goes back to the pool in all cases. The whole unit is bounded
// by TxTimeout.
func (p *Pool) InTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) (err error) {
	ctx, cancel := context.WithTimeout(ctx, p.TxTimeout)
	defer cancel()
	defer func() { err = markTimeout(ctx, err) }()

	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	committed = true
	return nil
}

// WithConn runs fn on one borrowed connection, bounded by TxTimeout, and
// returns the connection afterwards. Single-statement reads go through here so
// they obey the same acquire and statement deadlines as transactions.
func (p *Pool) WithConn(ctx context.Context, fn func(ctx context.Context, conn *sql.Conn) error) (err error) {
	ctx, cancel := context.WithTimeout(ctx, p.TxTimeout)
	defer cancel()
	defer func() { err = markTimeout(ctx, err) }()

	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, conn)
}

// markTimeout makes err match context.DeadlineExceeded when the deadline hit
// while the statement ran. Drivers report that case inconsistently.
func markTimeout(ctx context.Context, err error) error {
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", err, context.DeadlineExceeded)
	}
	return err
}

// Ping checks that the database answers within the acquire timeout.
func (p *Pool) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.AcquireTimeout)
	defer cancel()
	return p.DB.PingContext(ctx)
}

// Close waits for borrowed connections to be returned and closes the pool.
func (p *Pool) Close() error {
	return p.DB.Close()
}
