package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/Spycrab06/snailmail/internal/database"
	"github.com/Spycrab06/snailmail/internal/model"
)

// AccountRepo owns the authentication table and the sign-up transaction that
// spans authentication, address and customer.
type AccountRepo struct{ Pool *database.Pool }

func NewAccountRepo(p *database.Pool) *AccountRepo { return &AccountRepo{Pool: p} }

// EmailExists reports whether a credential with this email is stored,
// ignoring case.
func (r *AccountRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.Pool.WithConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		var one int
		err := conn.QueryRowContext(ctx,
			"SELECT 1 FROM authentication WHERE LOWER(email) = LOWER(?) LIMIT 1",
			strings.TrimSpace(email)).Scan(&one)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil
		case err != nil:
			return err
		}
		exists = true
		return nil
	})
	return exists, errors.Wrap(err, "check email")
}

// FindCredential fetches the credential for email, or ErrNotFound.
func (r *AccountRepo) FindCredential(ctx context.Context, email string) (model.Credential, error) {
	var c model.Credential
	err := r.Pool.WithConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		return conn.QueryRowContext(ctx,
			"SELECT auth_id, email, password, created_at FROM authentication WHERE LOWER(email) = LOWER(?) LIMIT 1",
			strings.TrimSpace(email)).Scan(&c.AuthID, &c.Email, &c.Password, &c.CreatedAt)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return model.Credential{}, ErrNotFound
	}
	if err != nil {
		return model.Credential{}, errors.Wrap(err, "find credential")
	}
	return c, nil
}

const profileRowsQuery = `
SELECT 'customer' AS profile_kind, account_type FROM customer WHERE auth_id = ?
UNION ALL
SELECT 'employee' AS profile_kind, account_type FROM employee WHERE auth_id = ?`

// ProfileRows returns every customer and employee row attached to authID in a
// single statement, so both tables are read from the same snapshot.
func (r *AccountRepo) ProfileRows(ctx context.Context, authID uint64) ([]model.ProfileRow, error) {
	var out []model.ProfileRow
	err := r.Pool.WithConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, profileRowsQuery, authID, authID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var kind, accountType string
			if err := rows.Scan(&kind, &accountType); err != nil {
				return err
			}
			out = append(out, model.ProfileRow{Kind: model.ProfileKind(kind), AccountType: accountType})
		}
		return rows.Err()
	})
	return out, errors.Wrap(err, "load profile rows")
}

// Register writes the credential, its address and the customer profile in
// one transaction and returns the new auth_id. Nothing is persisted unless all
// three inserts succeed. A duplicate email yields ErrEmailExists.
func (r *AccountRepo) Register(ctx context.Context, reg model.Registration) (uint64, error) {
	var authID uint64
	err := r.Pool.InTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		id, err := createCredentialTx(ctx, tx, reg.Email, reg.Password)
		if err != nil {
			return err
		}
		addressID, err := createAddressTx(ctx, tx, id, reg)
		if err != nil {
			return err
		}
		if _, err := createCustomerTx(ctx, tx, id, addressID, reg); err != nil {
			return err
		}
		authID = id
		return nil
	})
	if err != nil {
		return 0, err
	}
	return authID, nil
}

func createCredentialTx(ctx context.Context, tx *sql.Tx, email, password string) (uint64, error) {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO authentication (email, password) VALUES (?, ?)",
		email, password)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrEmailExists
		}
		return 0, errors.Wrap(err, "insert authentication")
	}
	return lastID(res, "authentication")
}

func createAddressTx(ctx context.Context, tx *sql.Tx, authID uint64, reg model.Registration) (uint64, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO address (street_name, city_name, state_name, zip_code, created_by, updated_by)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		reg.Street, reg.City, reg.State, reg.ZipCode, authID, authID)
	if err != nil {
		return 0, errors.Wrap(err, "insert address")
	}
	return lastID(res, "address")
}

func createCustomerTx(ctx context.Context, tx *sql.Tx, authID, addressID uint64, reg model.Registration) (uint64, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO customer (first_name, middle_name, last_name, phone_number, account_type,
		                       address_id, auth_id, created_by, updated_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		reg.FirstName, nullable(reg.MiddleName), reg.LastName, nullable(reg.PhoneNumber),
		string(reg.AccountType), addressID, authID, authID, authID)
	if err != nil {
		if isDuplicate(err) {
			return 0, errors.Wrap(err, "customer already exists for auth_id")
		}
		return 0, errors.Wrap(err, "insert customer")
	}
	return lastID(res, "customer")
}

func lastID(res sql.Result, table string) (uint64, error) {
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrapf(err, "%s last insert id", table)
	}
	return uint64(id), nil
}

// nullable maps an absent optional value to SQL NULL.
func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func ptrString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
