package repository

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/Spycrab06/snailmail/internal/database"
	"github.com/Spycrab06/snailmail/internal/model"
)

type CustomerRepo struct{ Pool *database.Pool }

func NewCustomerRepo(p *database.Pool) *CustomerRepo { return &CustomerRepo{Pool: p} }

const customerByAuthQuery = `
SELECT c.customer_id, c.auth_id, c.first_name, c.middle_name, c.last_name, c.phone_number,
       c.account_type, c.birth_date,
       a.address_id, a.street_name, a.city_name, a.state_name, a.zip_code,
       au.email
FROM customer c
LEFT JOIN address a ON a.address_id = c.address_id
LEFT JOIN authentication au ON au.auth_id = c.auth_id
WHERE c.auth_id = ?
LIMIT 1`

// GetByAuthID returns the customer profile with its address and email, or
// ErrNotFound. The password column is never read.
func (r *CustomerRepo) GetByAuthID(ctx context.Context, authID uint64) (model.CustomerRecord, error) {
	var (
		rec                             model.CustomerRecord
		middle, phone                   sql.NullString
		accountType                     string
		birth                           sql.NullTime
		addressID                       sql.NullInt64
		street, city, state, zip, email sql.NullString
	)
	err := r.Pool.WithConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		return conn.QueryRowContext(ctx, customerByAuthQuery, authID).Scan(
			&rec.CustomerID, &rec.AuthID, &rec.FirstName, &middle, &rec.LastName, &phone,
			&accountType, &birth,
			&addressID, &street, &city, &state, &zip,
			&email)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return model.CustomerRecord{}, ErrNotFound
	}
	if err != nil {
		return model.CustomerRecord{}, errors.Wrap(err, "get customer")
	}

	rec.MiddleName = ptrString(middle)
	rec.PhoneNumber = ptrString(phone)
	rec.AccountType = model.AccountType(accountType)
	if birth.Valid {
		d := birth.Time.Format("2006-01-02")
		rec.BirthDate = &d
	}
	if addressID.Valid {
		id := uint64(addressID.Int64)
		rec.AddressID = &id
	}
	rec.Street = ptrString(street)
	rec.City = ptrString(city)
	rec.State = ptrString(state)
	rec.ZipCode = ptrString(zip)
	rec.Email = ptrString(email)
	return rec, nil
}
