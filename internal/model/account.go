package model

import "time"

// AccountType is the closed role tag stored in customer.account_type and
// employee.account_type. Clients switch on it exhaustively to pick a landing
// area, so a new value needs ParseAccountType and Area extended together.
type AccountType string

const (
	AccountIndividual AccountType = "individual"
	AccountPrime      AccountType = "prime"
	AccountBusiness   AccountType = "business"
	AccountClerk      AccountType = "clerk"
	AccountCourier    AccountType = "courier"
	AccountManager    AccountType = "manager"
)

// Area is the part of the application an account lands in after login.
type Area string

const (
	AreaCustomer Area = "customer"
	AreaEmployee Area = "employee"
	AreaManager  Area = "manager"
)

// ProfileKind names the table that holds an account's profile row.
type ProfileKind string

const (
	ProfileCustomer ProfileKind = "customer"
	ProfileEmployee ProfileKind = "employee"
)

// ParseAccountType accepts only the known tags.
func ParseAccountType(s string) (AccountType, bool) {
	switch t := AccountType(s); t {
	case AccountIndividual, AccountPrime, AccountBusiness,
		AccountClerk, AccountCourier, AccountManager:
		return t, true
	}
	return "", false
}

// Area returns the landing area, or "" for an unknown tag.
func (t AccountType) Area() Area {
	switch t {
	case AccountIndividual, AccountPrime, AccountBusiness:
		return AreaCustomer
	case AccountClerk, AccountCourier:
		return AreaEmployee
	case AccountManager:
		return AreaManager
	}
	return ""
}

// ProfileKind returns the table an account of this type must live in.
// Managers are staff and live in employee.
func (t AccountType) ProfileKind() ProfileKind {
	if t.Area() == AreaCustomer {
		return ProfileCustomer
	}
	return ProfileEmployee
}

// CustomerAccountTypes are the types sign-up may create.
var CustomerAccountTypes = []AccountType{AccountIndividual, AccountPrime, AccountBusiness}

// Credential mirrors the authentication table.
type Credential struct {
	AuthID    uint64    // authentication.auth_id
	Email     string    // authentication.email (stored lower-cased)
	Password  string    // authentication.password (plain or bcrypt, see PASSWORD_HASHING)
	CreatedAt time.Time // authentication.created_at
}

// Account is a credential with its resolved role.
type Account struct {
	AuthID      uint64
	AccountType AccountType
	Profile     ProfileKind
}

// Area is shorthand for a.AccountType.Area().
func (a Account) Area() Area { return a.AccountType.Area() }

// Registration is a validated sign-up payload. Optional fields are nil when
// the client left them blank.
type Registration struct {
	Email       string
	Password    string // already hashed when bcrypt mode is on
	PhoneNumber *string
	Street      string
	City        string
	State       string
	ZipCode     string
	FirstName   string
	MiddleName  *string
	LastName    string
	AccountType AccountType
}

// ProfileRow is one hit of the role lookup: which table held a profile for
// the auth_id and the raw account_type stored there.
type ProfileRow struct {
	Kind        ProfileKind
	AccountType string
}
