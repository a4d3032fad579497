// Package service implements the account workflows (email precheck, sign-up,
// login) and customer profile reads on top of the repository stores.
// Every returned error is an *apperr.Error.
package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/Spycrab06/snailmail/internal/apperr"
	"github.com/Spycrab06/snailmail/internal/model"
	"github.com/Spycrab06/snailmail/internal/queue"
	"github.com/Spycrab06/snailmail/internal/repository"
	"github.com/Spycrab06/snailmail/internal/utils"
)

// Client-facing messages.
const (
	MsgQueryFailed         = "Database query failed"
	MsgEmailRequired       = "Email is required"
	MsgEmailTaken          = "Email has already been taken"
	MsgEmailFree           = "Email not already taken"
	MsgCredentialsRequired = "Email and password are required"
	MsgInvalidCredentials  = "Invalid email or password"
	MsgAccountTypeNotFound = "Account type not found"
	MsgInvalidAccountType  = "Invalid account type"
	MsgLoginSuccess        = "Login success"
	MsgSignUpSuccess       = "Sign up successful"
	MsgPasswordTooLong     = "Password must be at most 72 bytes"
)

// AccountStore is the persistence the account workflows need. Implemented by
// repository.AccountRepo and memstore.Store.
type AccountStore interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	FindCredential(ctx context.Context, email string) (model.Credential, error)
	ProfileRows(ctx context.Context, authID uint64) ([]model.ProfileRow, error)
	Register(ctx context.Context, reg model.Registration) (uint64, error)
}

type AccountConfig struct {
	JWTSecret      string
	SessionTTLMin  int
	StrictAddress  bool
	PublishTimeout time.Duration
}

type AccountService struct {
	store     AccountStore
	hasher    utils.PasswordHasher
	publisher queue.Publisher
	validate  *validator.Validate
	cfg       AccountConfig
	log       *slog.Logger

	inflight sync.WaitGroup
}

func NewAccountService(store AccountStore, hasher utils.PasswordHasher, pub queue.Publisher, cfg AccountConfig, log *slog.Logger) *AccountService {
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	if pub == nil {
		pub = queue.NopPublisher{}
	}
	return &AccountService{
		store:     store,
		hasher:    hasher,
		publisher: pub,
		validate:  newValidator(),
		cfg:       cfg,
		log:       log,
	}
}

// LoginInput is the /login payload.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUpInput is the /userSignUp payload. PhoneNumber and MiddleName are
// optional; every other field is required.
type SignUpInput struct {
	Email       string  `json:"email" validate:"required"`
	Password    string  `json:"password" validate:"required"`
	PhoneNumber *string `json:"phoneNumber"`
	Street      string  `json:"street" validate:"required"`
	City        string  `json:"city" validate:"required"`
	State       string  `json:"state" validate:"required"`
	ZipCode     string  `json:"zipCode" validate:"required"`
	FirstName   string  `json:"firstName" validate:"required"`
	MiddleName  *string `json:"middleName"`
	LastName    string  `json:"lastName" validate:"required"`
	AccountType string  `json:"accountType" validate:"required"`
}

// Session is what login and sign-up hand back to the client.
type Session struct {
	AuthID      uint64
	AccountType model.AccountType
	Area        model.Area
	Token       string
	ExpiresAt   time.Time
}

// EmailExists reports whether email is already registered. It takes no lock;
// a concurrent sign-up can still win, which Register reports as a conflict.
func (s *AccountService) EmailExists(ctx context.Context, email string) (bool, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return false, apperr.Client(MsgEmailRequired)
	}
	exists, err := s.store.EmailExists(ctx, email)
	if err != nil {
		return false, apperr.FromDB(MsgQueryFailed, err)
	}
	return exists, nil
}

// Login verifies the credential and resolves the account's role.
func (s *AccountService) Login(ctx context.Context, in LoginInput) (Session, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || in.Password == "" {
		return Session{}, apperr.Client(MsgCredentialsRequired)
	}

	cred, err := s.store.FindCredential(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, apperr.Client(MsgInvalidCredentials)
	}
	if err != nil {
		return Session{}, apperr.FromDB(MsgQueryFailed, err)
	}
	if !s.hasher.Verify(cred.Password, in.Password) {
		return Session{}, apperr.Client(MsgInvalidCredentials)
	}

	rows, err := s.store.ProfileRows(ctx, cred.AuthID)
	if err != nil {
		return Session{}, apperr.FromDB(MsgQueryFailed, err)
	}
	acct, err := ResolveAccount(cred.AuthID, rows)
	if err != nil {
		s.log.Error("account without a resolvable profile", "auth_id", cred.AuthID, "err", err)
		return Session{}, apperr.Consistency(MsgAccountTypeNotFound, err)
	}
	return s.issue(acct.AuthID, acct.AccountType)
}

// ResolveAccount requires exactly one profile row whose account type is
// known and belongs to the table it came from. Anything else means the data
// is inconsistent.
func ResolveAccount(authID uint64, rows []model.ProfileRow) (model.Account, error) {
	switch len(rows) {
	case 0:
		return model.Account{}, errors.Errorf("auth_id %d has no customer or employee row", authID)
	case 1:
	default:
		return model.Account{}, errors.Errorf("auth_id %d has %d profile rows", authID, len(rows))
	}
	row := rows[0]
	at, ok := model.ParseAccountType(row.AccountType)
	if !ok {
		return model.Account{}, errors.Errorf("auth_id %d has unknown account type %q", authID, row.AccountType)
	}
	if at.ProfileKind() != row.Kind {
		return model.Account{}, errors.Errorf("auth_id %d: account type %q stored in %s table", authID, at, row.Kind)
	}
	return model.Account{AuthID: authID, AccountType: at, Profile: row.Kind}, nil
}

// Register validates and normalizes the payload, then creates the
// credential, address and customer rows atomically.
func (s *AccountService) Register(ctx context.Context, in SignUpInput) (Session, error) {
	reg, aerr := s.normalize(in)
	if aerr != nil {
		return Session{}, aerr
	}

	stored, err := s.hasher.Hash(reg.Password)
	if errors.Is(err, utils.ErrPasswordTooLong) {
		return Session{}, apperr.Client(MsgPasswordTooLong)
	}
	if err != nil {
		return Session{}, apperr.Server(MsgQueryFailed, err)
	}
	reg.Password = stored

	authID, err := s.store.Register(ctx, reg)
	if errors.Is(err, repository.ErrEmailExists) {
		return Session{}, apperr.Conflict(MsgEmailTaken, err)
	}
	if err != nil {
		s.log.Error("sign-up transaction failed", "err", err)
		return Session{}, apperr.FromDB(MsgQueryFailed, err)
	}

	s.publishRegistered(queue.AccountRegisteredEvent{
		AuthID:       authID,
		Email:        reg.Email,
		AccountType:  string(reg.AccountType),
		Area:         string(reg.AccountType.Area()),
		RegisteredAt: time.Now().UTC(),
	})
	return s.issue(authID, reg.AccountType)
}

func (s *AccountService) normalize(in SignUpInput) (model.Registration, *apperr.Error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Street = strings.TrimSpace(in.Street)
	in.City = strings.TrimSpace(in.City)
	in.State = strings.TrimSpace(in.State)
	in.ZipCode = strings.TrimSpace(in.ZipCode)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.AccountType = strings.TrimSpace(in.AccountType)

	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return model.Registration{}, apperr.Client(describe(verrs))
		}
		return model.Registration{}, apperr.Client(err.Error())
	}

	at, ok := model.ParseAccountType(in.AccountType)
	if !ok || at.Area() != model.AreaCustomer {
		return model.Registration{}, apperr.Client(MsgInvalidAccountType)
	}

	if s.cfg.StrictAddress {
		if s.validate.Var(in.State, "len=2,alpha") != nil {
			return model.Registration{}, apperr.Client("state must be a two-letter code")
		}
		if s.validate.Var(in.ZipCode, "len=5,numeric") != nil {
			return model.Registration{}, apperr.Client("zipCode must be five digits")
		}
	}

	return model.Registration{
		Email:       in.Email,
		Password:    in.Password,
		PhoneNumber: optional(in.PhoneNumber),
		Street:      in.Street,
		City:        in.City,
		State:       in.State,
		ZipCode:     in.ZipCode,
		FirstName:   in.FirstName,
		MiddleName:  optional(in.MiddleName),
		LastName:    in.LastName,
		AccountType: at,
	}, nil
}

func (s *AccountService) issue(authID uint64, at model.AccountType) (Session, error) {
	tok, err := utils.NewSessionToken(s.cfg.JWTSecret, authID, at, s.cfg.SessionTTLMin)
	if err != nil {
		return Session{}, apperr.Server(MsgQueryFailed, err)
	}
	return Session{AuthID: authID, AccountType: at, Area: at.Area(), Token: tok.Token, ExpiresAt: tok.Exp}, nil
}

// publishRegistered hands the event to the broker without holding up the
// response. Failures are logged and dropped.
func (s *AccountService) publishRegistered(ev queue.AccountRegisteredEvent) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PublishTimeout)
		defer cancel()
		if err := s.publisher.PublishAccountRegistered(ctx, ev); err != nil {
			s.log.Warn("publish account.registered failed", "auth_id", ev.AuthID, "err", err)
		}
	}()
}

// Wait blocks until in-flight event publishes finish. Called at shutdown.
func (s *AccountService) Wait() { s.inflight.Wait() }
