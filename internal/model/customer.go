package model

// CustomerRecord is the customer row joined with its address and credential,
// as returned by GET /getCustomerData. Address and email columns come from
// LEFT JOINs and may be null. The password column is never selected.
type CustomerRecord struct {
	CustomerID  uint64      `json:"customer_id"`
	AuthID      uint64      `json:"auth_id"`
	FirstName   string      `json:"first_name"`
	MiddleName  *string     `json:"middle_name"`
	LastName    string      `json:"last_name"`
	PhoneNumber *string     `json:"phone_number"`
	AccountType AccountType `json:"account_type"`
	BirthDate   *string     `json:"birth_date"` // YYYY-MM-DD
	AddressID   *uint64     `json:"address_id"`
	Street      *string     `json:"street_name"`
	City        *string     `json:"city_name"`
	State       *string     `json:"state_name"`
	ZipCode     *string     `json:"zip_code"`
	Email       *string     `json:"email"`
}
