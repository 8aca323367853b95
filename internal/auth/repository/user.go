package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/botiquin/botiquin-backend/pkg/database"
	"github.com/botiquin/botiquin-backend/pkg/errors"
	"github.com/google/uuid"
)

// Roles recognized by the system
const (
	RoleAdmin    = "Admin"
	RoleNursing  = "Nursing"
	RolePharmacy = "Pharmacy"
)

// ValidRole reports whether role is one of the known roles
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleNursing, RolePharmacy:
		return true
	}
	return false
}

// User represents a user account
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	Name         string    `db:"name" json:"name"`
	Role         string    `db:"role" json:"role"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// UserRepository handles user persistence
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	query := `
		INSERT INTO users (id, email, name, role, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	return r.db.QueryRowxContext(ctx, query,
		user.ID, user.Email, user.Name, user.Role, user.PasswordHash,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
}

// GetByID gets a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	var user User

	query := `
		SELECT id, email, name, role, password_hash, created_at, updated_at
		FROM users WHERE id = $1
	`

	err := r.db.GetContext(ctx, &user, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("user")
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// GetByEmail gets a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	var user User

	query := `
		SELECT id, email, name, role, password_hash, created_at, updated_at
		FROM users WHERE email = $1
	`

	err := r.db.GetContext(ctx, &user, query, email)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("user")
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// List lists all users ordered by name
func (r *UserRepository) List(ctx context.Context) ([]*User, error) {
	users := []*User{}

	query := `
		SELECT id, email, name, role, password_hash, created_at, updated_at
		FROM users ORDER BY name
	`

	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, err
	}

	return users, nil
}

// Delete removes a user account
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("user")
	}

	return nil
}

// UpdateRole updates a user's role
func (r *UserRepository) UpdateRole(ctx context.Context, id, role string) error {
	query := `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, role)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("user")
	}

	return nil
}
