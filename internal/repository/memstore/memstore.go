// Package memstore is an in-memory stand-in for the MySQL repositories. It
// follows the same contracts (case-insensitive unique email, all-or-nothing
// sign-up, sentinel errors) and backs service and handler tests.
package memstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Spycrab06/snailmail/internal/model"
	"github.com/Spycrab06/snailmail/internal/repository"
)

// Stage names a write step of Register for failure injection.
type Stage string

const (
	StageCredential Stage = "authentication"
	StageAddress    Stage = "address"
	StageCustomer   Stage = "customer"
)

type address struct {
	id                       uint64
	street, city, state, zip string
	createdBy, updatedBy     uint64
}

type profile struct {
	id          uint64
	kind        model.ProfileKind
	authID      uint64
	addressID   uint64
	first, last string
	middle      *string
	phone       *string
	accountType string
	birthDate   *string
}

type Store struct {
	mu          sync.Mutex
	nextID      uint64
	credentials map[uint64]model.Credential
	byEmail     map[string]uint64
	addresses   map[uint64]address
	profiles    []profile
	failures    map[Stage]error
}

func New() *Store {
	return &Store{
		credentials: map[uint64]model.Credential{},
		byEmail:     map[string]uint64{},
		addresses:   map[uint64]address{},
		failures:    map[Stage]error{},
	}
}

func key(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func (s *Store) id() uint64 {
	s.nextID++
	return s.nextID
}

// FailAt makes the next Register fail at stage with err, after the earlier
// stages have been staged.
func (s *Store) FailAt(stage Stage, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[stage] = err
}

func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byEmail[key(email)]
	return ok, ctx.Err()
}

func (s *Store) FindCredential(ctx context.Context, email string) (model.Credential, error) {
	if err := ctx.Err(); err != nil {
		return model.Credential{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[key(email)]
	if !ok {
		return model.Credential{}, repository.ErrNotFound
	}
	return s.credentials[id], nil
}

func (s *Store) ProfileRows(ctx context.Context, authID uint64) ([]model.ProfileRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []model.ProfileRow
	for _, p := range s.profiles {
		if p.authID == authID {
			rows = append(rows, model.ProfileRow{Kind: p.kind, AccountType: p.accountType})
		}
	}
	return rows, nil
}

// Register stages all three rows and publishes them under one lock, so a
// concurrent reader sees either none or all of them.
func (s *Store) Register(ctx context.Context, reg model.Registration) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(reg.Email)
	if _, taken := s.byEmail[k]; taken {
		return 0, repository.ErrEmailExists
	}
	if err := s.takeFailure(StageCredential); err != nil {
		return 0, err
	}
	authID, addressID, profileID := s.id(), s.id(), s.id()
	if err := s.takeFailure(StageAddress); err != nil {
		return 0, err
	}
	if err := s.takeFailure(StageCustomer); err != nil {
		return 0, err
	}

	s.credentials[authID] = model.Credential{AuthID: authID, Email: k, Password: reg.Password, CreatedAt: time.Now().UTC()}
	s.byEmail[k] = authID
	s.addresses[addressID] = address{
		id: addressID, street: reg.Street, city: reg.City, state: reg.State, zip: reg.ZipCode,
		createdBy: authID, updatedBy: authID,
	}
	s.profiles = append(s.profiles, profile{
		id: profileID, kind: model.ProfileCustomer, authID: authID, addressID: addressID,
		first: reg.FirstName, last: reg.LastName, middle: reg.MiddleName, phone: reg.PhoneNumber,
		accountType: string(reg.AccountType),
	})
	return authID, nil
}

func (s *Store) takeFailure(stage Stage) error {
	err := s.failures[stage]
	delete(s.failures, stage)
	return err
}

func (s *Store) GetByAuthID(ctx context.Context, authID uint64) (model.CustomerRecord, error) {
	if err := ctx.Err(); err != nil {
		return model.CustomerRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.profiles {
		if p.kind != model.ProfileCustomer || p.authID != authID {
			continue
		}
		rec := model.CustomerRecord{
			CustomerID:  p.id,
			AuthID:      p.authID,
			FirstName:   p.first,
			MiddleName:  p.middle,
			LastName:    p.last,
			PhoneNumber: p.phone,
			AccountType: model.AccountType(p.accountType),
			BirthDate:   p.birthDate,
		}
		if a, ok := s.addresses[p.addressID]; ok {
			id := a.id
			rec.AddressID = &id
			rec.Street, rec.City, rec.State, rec.ZipCode = &a.street, &a.city, &a.state, &a.zip
		}
		if c, ok := s.credentials[authID]; ok {
			email := c.Email
			rec.Email = &email
		}
		return rec, nil
	}
	return model.CustomerRecord{}, repository.ErrNotFound
}

// AddEmployee seeds a staff account. accountType is stored verbatim so tests
// can plant inconsistent data.
func (s *Store) AddEmployee(email, password, accountType string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	authID := s.id()
	k := key(email)
	s.credentials[authID] = model.Credential{AuthID: authID, Email: k, Password: password, CreatedAt: time.Now().UTC()}
	s.byEmail[k] = authID
	s.profiles = append(s.profiles, profile{id: s.id(), kind: model.ProfileEmployee, authID: authID, accountType: accountType})
	return authID
}

// AddCredential stores a credential with no profile row.
func (s *Store) AddCredential(email, password string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	authID := s.id()
	k := key(email)
	s.credentials[authID] = model.Credential{AuthID: authID, Email: k, Password: password, CreatedAt: time.Now().UTC()}
	s.byEmail[k] = authID
	return authID
}

// AddProfile attaches an extra profile row to an existing credential.
func (s *Store) AddProfile(authID uint64, kind model.ProfileKind, accountType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles = append(s.profiles, profile{id: s.id(), kind: kind, authID: authID, accountType: accountType})
}

// Counts returns the number of credential, address and customer rows.
func (s *Store) Counts() (credentials, addresses, customers int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.profiles {
		if p.kind == model.ProfileCustomer {
			customers++
		}
	}
	return len(s.credentials), len(s.addresses), customers
}
