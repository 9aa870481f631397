package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/fba70/avica-ugc-sub000/internal/model"
)

// InconsistencyError signals that an event's counter allowed a debit but
// the owning partner holds no paid instance with remaining credit. It
// points at drift between the event and package ledgers and must reach
// operators rather than being swallowed.
type InconsistencyError struct {
	EventID   int64
	PartnerID int64
	Kind      model.ContentKind
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("ledger inconsistency: no paid %s capacity for partner %d (event %d)", e.Kind, e.PartnerID, e.EventID)
}

// DebitResult reports the balances after a successful debit.
type DebitResult struct {
	EventRemaining    int   `json:"event_remaining"`
	InstanceID        int64 `json:"instance_id"`
	InstanceRemaining int   `json:"instance_remaining"`
}

// Ledger is the single writer for event and product-instance counters.
// All other reads of those counts elsewhere in the system are
// informational and must not mutate them.
type Ledger struct {
	db     *sql.DB
	logger *slog.Logger
}

func New(db *sql.DB, logger *slog.Logger) *Ledger {
	return &Ledger{db: db, logger: logger}
}

// countColumn maps a content kind to its counter column. Kind is
// validated upstream; default to images to keep SQL construction closed.
func countColumn(kind model.ContentKind) string {
	if kind == model.KindVideo {
		return "videos_count"
	}
	return "images_count"
}

// CheckAvailable is the cheap fail-fast precondition: the event is
// active and its remaining balance for the kind is positive. It is a
// point-in-time read and by itself does not reserve anything.
func (l *Ledger) CheckAvailable(eventID int64, kind model.ContentKind) (bool, error) {
	var status string
	var remaining int
	err := l.db.QueryRow(
		`SELECT status, `+countColumn(kind)+` FROM events WHERE id = ?`,
		eventID,
	).Scan(&status, &remaining)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check available: %w", err)
	}
	return status == string(model.EventStatusActive) && remaining > 0, nil
}

// Debit atomically decrements the event's remaining balance (floored at
// zero) and the oldest paid active product instance of the owning
// partner, in one transaction. It is called only after the artifact has
// been durably stored and persisted — it confirms consumption that
// already happened.
func (l *Ledger) Debit(ctx context.Context, eventID int64, kind model.ContentKind) (*DebitResult, error) {
	col := countColumn(kind)

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin debit tx: %w", err)
	}
	defer tx.Rollback()

	var partnerID int64
	err = tx.QueryRowContext(ctx, `SELECT partner_id FROM events WHERE id = ?`, eventID).Scan(&partnerID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("debit: event %d not found", eventID)
	}
	if err != nil {
		return nil, fmt.Errorf("debit: get event: %w", err)
	}

	// Guarded decrement floors the event balance at zero; an already
	// exhausted counter is not an error at this point, the artifact is
	// delivered either way.
	_, err = tx.ExecContext(ctx,
		`UPDATE events SET `+col+` = `+col+` - 1, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND `+col+` > 0`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("debit: decrement event: %w", err)
	}

	// Oldest paid package first, so earlier purchases exhaust before
	// newer ones.
	var instanceID int64
	var instanceRemaining int
	err = tx.QueryRowContext(ctx,
		`SELECT id, `+col+` FROM product_instances
		 WHERE user_id = ? AND status = ? AND payment_status = ? AND `+col+` > 0
		 ORDER BY created_at ASC, id ASC LIMIT 1`,
		partnerID, model.ProductStatusActive, model.PaymentStatusPaid,
	).Scan(&instanceID, &instanceRemaining)
	if err == sql.ErrNoRows {
		return nil, &InconsistencyError{EventID: eventID, PartnerID: partnerID, Kind: kind}
	}
	if err != nil {
		return nil, fmt.Errorf("debit: select product instance: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE product_instances SET `+col+` = `+col+` - 1, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND `+col+` > 0`,
		instanceID,
	)
	if err != nil {
		return nil, fmt.Errorf("debit: decrement product instance: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("debit: rows affected: %w", err)
	}
	if n == 0 {
		return nil, &InconsistencyError{EventID: eventID, PartnerID: partnerID, Kind: kind}
	}

	var eventRemaining int
	if err := tx.QueryRowContext(ctx, `SELECT `+col+` FROM events WHERE id = ?`, eventID).Scan(&eventRemaining); err != nil {
		return nil, fmt.Errorf("debit: read event balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit debit tx: %w", err)
	}

	l.logger.Info("quota debited",
		"event_id", eventID,
		"kind", kind,
		"event_remaining", eventRemaining,
		"instance_id", instanceID,
		"instance_remaining", instanceRemaining-1,
	)

	return &DebitResult{
		EventRemaining:    eventRemaining,
		InstanceID:        instanceID,
		InstanceRemaining: instanceRemaining - 1,
	}, nil
}
