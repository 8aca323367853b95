package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/botiquin/botiquin-backend/pkg/database"
	"github.com/botiquin/botiquin-backend/pkg/dates"
	"github.com/botiquin/botiquin-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// DefaultResponsible is recorded when no responsible person is given.
const DefaultResponsible = "—"

// Item represents a tracked medication batch
type Item struct {
	ID              string     `db:"id" json:"id"`
	Name            string     `db:"name" json:"name"`
	Lot             string     `db:"lot" json:"lot"`
	ExpiryDate      dates.Date `db:"expiry_date" json:"expiryDate"`
	Unit            string     `db:"unit" json:"unit"`
	Quantity        int        `db:"quantity" json:"quantity"`
	Minimum         int        `db:"minimum" json:"minimum"`
	Discarded       bool       `db:"discarded" json:"discarded"`
	LastResponsible string     `db:"last_responsible" json:"lastResponsible"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updatedAt"`
	CreatedBy       *string    `db:"created_by" json:"createdBy,omitempty"`
}

const itemColumns = `id, name, lot, expiry_date, unit, quantity, minimum, discarded,
	       last_responsible, created_at, updated_at, created_by`

// ItemRepository handles item persistence
type ItemRepository struct {
	db *database.DB
}

// NewItemRepository creates a new item repository
func NewItemRepository(db *database.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// Create creates a new item
func (r *ItemRepository) Create(ctx context.Context, item *Item) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.LastResponsible == "" {
		item.LastResponsible = DefaultResponsible
	}

	query := `
		INSERT INTO items (
			id, name, lot, expiry_date, unit, quantity, minimum, discarded,
			last_responsible, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	return r.db.QueryRowxContext(ctx, query,
		item.ID, item.Name, item.Lot, item.ExpiryDate, item.Unit,
		item.Quantity, item.Minimum, item.Discarded, item.LastResponsible,
		item.CreatedBy,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
}

// GetByID gets an item by ID
func (r *ItemRepository) GetByID(ctx context.Context, id string) (*Item, error) {
	var item Item

	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`

	err := r.db.GetContext(ctx, &item, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("item")
	}
	if err != nil {
		return nil, err
	}

	return &item, nil
}

// Update applies a partial update, writing only the given columns.
// Quantity is never written here; stock changes go through the ledger's
// conditional store.
func (r *ItemRepository) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	if _, ok := fields["quantity"]; ok {
		return errors.BadRequest("quantity cannot be edited directly")
	}

	columns := make([]string, 0, len(fields))
	for column := range fields {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	set := make([]string, 0, len(columns)+1)
	args := make([]interface{}, 0, len(columns)+1)
	args = append(args, id)
	for i, column := range columns {
		set = append(set, fmt.Sprintf("%s = $%d", column, i+2))
		args = append(args, fields[column])
	}
	set = append(set, "updated_at = NOW()")

	query := fmt.Sprintf("UPDATE items SET %s WHERE id = $1", strings.Join(set, ", "))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("item")
	}

	return nil
}

// List lists items, optionally restricted by discarded state
func (r *ItemRepository) List(ctx context.Context, discarded *bool) ([]*Item, error) {
	items := []*Item{}

	query := `SELECT ` + itemColumns + ` FROM items`
	args := []interface{}{}

	if discarded != nil {
		query += ` WHERE discarded = $1`
		args = append(args, *discarded)
	}

	query += ` ORDER BY name`

	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, err
	}

	return items, nil
}

// GetActive gets all non-discarded items ordered by name
func (r *ItemRepository) GetActive(ctx context.Context) ([]*Item, error) {
	items := []*Item{}

	query := `SELECT ` + itemColumns + ` FROM items WHERE discarded = FALSE ORDER BY name`

	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, err
	}

	return items, nil
}

// CompareAndSetQuantity conditionally stores a new quantity inside tx.
// The store applies only if the row still carries the previously read
// quantity and has not been discarded; the return value reports whether
// the swap happened.
func (r *ItemRepository) CompareAndSetQuantity(ctx context.Context, tx *sqlx.Tx, id string, prevQuantity, newQuantity int, responsible string) (bool, error) {
	query := `
		UPDATE items SET quantity = $3, last_responsible = $4, updated_at = NOW()
		WHERE id = $1 AND quantity = $2 AND discarded = FALSE
	`

	result, err := tx.ExecContext(ctx, query, id, prevQuantity, newQuantity, responsible)
	if err != nil {
		return false, err
	}

	affected, _ := result.RowsAffected()
	return affected == 1, nil
}

// Discard conditionally zeroes an item's stock and marks it discarded
// inside tx, keyed on the previously read quantity.
func (r *ItemRepository) Discard(ctx context.Context, tx *sqlx.Tx, id string, prevQuantity int, responsible string) (bool, error) {
	query := `
		UPDATE items SET quantity = 0, discarded = TRUE, last_responsible = $3, updated_at = NOW()
		WHERE id = $1 AND quantity = $2 AND discarded = FALSE
	`

	result, err := tx.ExecContext(ctx, query, id, prevQuantity, responsible)
	if err != nil {
		return false, err
	}

	affected, _ := result.RowsAffected()
	return affected == 1, nil
}
