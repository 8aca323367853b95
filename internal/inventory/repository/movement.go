package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/botiquin/botiquin-backend/pkg/database"
	"github.com/botiquin/botiquin-backend/pkg/dates"
	"github.com/botiquin/botiquin-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// MovementKind is the closed set of stock-changing event kinds.
type MovementKind string

const (
	MovementEntry   MovementKind = "entry"
	MovementExit    MovementKind = "exit"
	MovementDiscard MovementKind = "discard"
)

// Valid reports whether k is one of the known movement kinds.
func (k MovementKind) Valid() bool {
	switch k {
	case MovementEntry, MovementExit, MovementDiscard:
		return true
	}
	return false
}

// Movement is an immutable ledger entry recording a stock-changing
// event against one item. ItemName is a snapshot taken at record time.
type Movement struct {
	ID          string       `db:"id" json:"id"`
	ItemID      string       `db:"item_id" json:"itemId"`
	ItemName    string       `db:"item_name" json:"itemName"`
	Kind        MovementKind `db:"kind" json:"kind"`
	Quantity    int          `db:"quantity" json:"quantity"`
	Responsible string       `db:"responsible" json:"responsible"`
	Date        dates.Date   `db:"date" json:"date"`
	Note        *string      `db:"note" json:"note,omitempty"`
	CreatedAt   time.Time    `db:"created_at" json:"createdAt"`
	CreatedBy   *string      `db:"created_by" json:"createdBy,omitempty"`
}

// MovementStats aggregates the ledger over a date range. Discards carry
// only a count; their recorded quantity is whatever stock was zeroed,
// so no cumulative discard sum is kept.
type MovementStats struct {
	Total              int64 `json:"total"`
	Entries            int64 `json:"entries"`
	Exits              int64 `json:"exits"`
	Discards           int64 `json:"discards"`
	TotalEntryQuantity int64 `json:"totalEntryQuantity"`
	TotalExitQuantity  int64 `json:"totalExitQuantity"`
}

const movementColumns = `id, item_id, item_name, kind, quantity, responsible, date,
	       note, created_at, created_by`

// MovementRepository handles movement persistence
type MovementRepository struct {
	db *database.DB
}

// NewMovementRepository creates a new movement repository
func NewMovementRepository(db *database.DB) *MovementRepository {
	return &MovementRepository{db: db}
}

// CreateInTx inserts a movement inside tx
func (r *MovementRepository) CreateInTx(ctx context.Context, tx *sqlx.Tx, m *Movement) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Responsible == "" {
		m.Responsible = DefaultResponsible
	}

	query := `
		INSERT INTO movements (
			id, item_id, item_name, kind, quantity, responsible, date, note, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`

	return tx.QueryRowxContext(ctx, query,
		m.ID, m.ItemID, m.ItemName, m.Kind, m.Quantity, m.Responsible,
		m.Date, m.Note, m.CreatedBy,
	).Scan(&m.CreatedAt)
}

// GetByID gets a movement by ID
func (r *MovementRepository) GetByID(ctx context.Context, id string) (*Movement, error) {
	var m Movement

	query := `SELECT ` + movementColumns + ` FROM movements WHERE id = $1`

	err := r.db.GetContext(ctx, &m, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("movement")
	}
	if err != nil {
		return nil, err
	}

	return &m, nil
}

// List lists movements newest-first with pagination, optionally
// restricted to one item. total counts all matching rows ignoring the
// page window.
func (r *MovementRepository) List(ctx context.Context, limit, page int, itemID string) ([]*Movement, int64, error) {
	var total int64
	movements := []*Movement{}

	countQuery := `SELECT COUNT(*) FROM movements`
	countArgs := []interface{}{}

	if itemID != "" {
		countQuery += ` WHERE item_id = $1`
		countArgs = append(countArgs, itemID)
	}

	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	query := `SELECT ` + movementColumns + ` FROM movements`
	args := []interface{}{}

	if itemID != "" {
		query += ` WHERE item_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = append(args, itemID, limit, offset)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		args = append(args, limit, offset)
	}

	if err := r.db.SelectContext(ctx, &movements, query, args...); err != nil {
		return nil, 0, err
	}

	return movements, total, nil
}

// ListByItem gets the most recent movements for one item
func (r *MovementRepository) ListByItem(ctx context.Context, itemID string, limit int) ([]*Movement, error) {
	movements := []*Movement{}

	query := `SELECT ` + movementColumns + `
		FROM movements WHERE item_id = $1 ORDER BY created_at DESC LIMIT $2`

	if err := r.db.SelectContext(ctx, &movements, query, itemID, limit); err != nil {
		return nil, err
	}

	return movements, nil
}

// Stats aggregates movements whose date falls within the inclusive
// range [start, end]; either bound may be nil for an open end.
func (r *MovementRepository) Stats(ctx context.Context, start, end *dates.Date) (*MovementStats, error) {
	type kindRow struct {
		Kind     MovementKind `db:"kind"`
		Count    int64        `db:"count"`
		Quantity int64        `db:"quantity"`
	}

	query := `
		SELECT kind, COUNT(*) AS count, COALESCE(SUM(quantity), 0) AS quantity
		FROM movements
	`
	args := []interface{}{}

	switch {
	case start != nil && end != nil:
		query += ` WHERE date >= $1 AND date <= $2`
		args = append(args, *start, *end)
	case start != nil:
		query += ` WHERE date >= $1`
		args = append(args, *start)
	case end != nil:
		query += ` WHERE date <= $1`
		args = append(args, *end)
	}

	query += ` GROUP BY kind`

	rows := []kindRow{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	stats := &MovementStats{}
	for _, row := range rows {
		stats.Total += row.Count
		switch row.Kind {
		case MovementEntry:
			stats.Entries = row.Count
			stats.TotalEntryQuantity = row.Quantity
		case MovementExit:
			stats.Exits = row.Count
			stats.TotalExitQuantity = row.Quantity
		case MovementDiscard:
			stats.Discards = row.Count
		}
	}

	return stats, nil
}

// Delete removes a movement record. Stock already applied by the
// movement is not reconciled.
func (r *MovementRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM movements WHERE id = $1`, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("movement")
	}

	return nil
}
