package repository

import (
	"context"
	"database/sql"

	"github.com/kazuhito/yoyaku/internal/model"
)

// OperatorStore looks up the staff accounts allowed to author rules.
type OperatorStore interface {
	GetByEmail(ctx context.Context, email string) (*model.Operator, error)
}

// OperatorRepo is the MySQL OperatorStore.
type OperatorRepo struct {
	db *sql.DB
}

// NewOperatorRepo returns an OperatorRepo bound to the database.
func NewOperatorRepo(db *sql.DB) *OperatorRepo { return &OperatorRepo{db: db} }

// GetByEmail returns the operator account for an email address, or
// ErrOperatorNotFound.
func (r *OperatorRepo) GetByEmail(ctx context.Context, email string) (*model.Operator, error) {
	const q = `SELECT id, store_id, email, password_hash, role, created_at
               FROM operators WHERE email = ?`
	var op model.Operator
	err := r.db.QueryRowContext(ctx, q, email).Scan(
		&op.ID, &op.StoreID, &op.Email, &op.PasswordHash, &op.Role, &op.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOperatorNotFound
		}
		return nil, err
	}
	return &op, nil
}
