package model

import "time"

// Operator roles stored in the JWT "role" claim.
const (
	RoleOperator = "OPERATOR"
	RoleViewer   = "VIEWER"
)

// Operator is a staff account allowed to author capacity rules for a
// store. Only the bcrypt hash of the password is ever stored.
type Operator struct {
	ID           string    // operators.id
	StoreID      string    // operators.store_id
	Email        string    // operators.email
	PasswordHash string    // operators.password_hash
	Role         string    // operators.role
	CreatedAt    time.Time // operators.created_at
}
