package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/Spycrab06/snailmail/internal/apperr"
	"github.com/Spycrab06/snailmail/internal/model"
	"github.com/Spycrab06/snailmail/internal/repository"
)

const (
	MsgAuthIDRequired   = "authId is required"
	MsgCustomerNotFound = "Customer not found"
)

type CustomerStore interface {
	GetByAuthID(ctx context.Context, authID uint64) (model.CustomerRecord, error)
}

type CustomerService struct{ store CustomerStore }

func NewCustomerService(store CustomerStore) *CustomerService {
	return &CustomerService{store: store}
}

// ParseAuthID accepts a positive decimal id.
func ParseAuthID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Client(MsgAuthIDRequired)
	}
	return id, nil
}

// Get returns the customer profile, address and email for authID.
func (s *CustomerService) Get(ctx context.Context, authID uint64) (model.CustomerRecord, error) {
	rec, err := s.store.GetByAuthID(ctx, authID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.CustomerRecord{}, apperr.Client(MsgCustomerNotFound)
	}
	if err != nil {
		return model.CustomerRecord{}, apperr.FromDB(MsgQueryFailed, err)
	}
	return rec, nil
}
