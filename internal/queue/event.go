// Package queue carries account events over RabbitMQ: the payloads, a
// publisher used by the sign-up flow and a background consumer.
package queue

import "time"

// RegistrationQueue is the durable queue account events are routed to.
const RegistrationQueue = "account.registered"

// AccountRegisteredEvent is published after a sign-up transaction commits.
// It never carries the password.
type AccountRegisteredEvent struct {
	AuthID       uint64    `json:"auth_id"`
	Email        string    `json:"email"`
	AccountType  string    `json:"account_type"`
	Area         string    `json:"area"`
	RegisteredAt time.Time `json:"registered_at"`
}
