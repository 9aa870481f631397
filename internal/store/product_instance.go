package store

import (
	"database/sql"
	"fmt"

	"github.com/fba70/avica-ugc-sub000/internal/model"
)

type ProductInstanceStore struct {
	db *sql.DB
}

func NewProductInstanceStore(db *sql.DB) *ProductInstanceStore {
	return &ProductInstanceStore{db: db}
}

func scanProductInstance(scanner interface{ Scan(...any) error }) (*model.ProductInstance, error) {
	var p model.ProductInstance
	var sessionID sql.NullString
	err := scanner.Scan(
		&p.ID, &p.UserID, &p.Plan, &p.Status, &p.PaymentStatus, &sessionID,
		&p.LimitImages, &p.LimitVideos, &p.ImagesCount, &p.VideosCount,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if sessionID.Valid {
		p.StripeSessionID = &sessionID.String
	}
	return &p, nil
}

const productInstanceCols = `id, user_id, plan, status, payment_status, stripe_session_id, limit_images, limit_videos, images_count, videos_count, created_at, updated_at`

// Create inserts an unpaid instance at checkout initiation. Remaining
// counts start at the plan limits; they only become debitable once the
// payment webhook marks the instance paid.
func (s *ProductInstanceStore) Create(userID int64, plan string, limitImages, limitVideos int, stripeSessionID string) (*model.ProductInstance, error) {
	var sessionID sql.NullString
	if stripeSessionID != "" {
		sessionID = sql.NullString{String: stripeSessionID, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO product_instances (user_id, plan, stripe_session_id, limit_images, limit_videos, images_count, videos_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID, plan, sessionID, limitImages, limitVideos, limitImages, limitVideos,
	)
	if err != nil {
		return nil, fmt.Errorf("insert product instance: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ProductInstanceStore) GetByID(id int64) (*model.ProductInstance, error) {
	row := s.db.QueryRow(`SELECT `+productInstanceCols+` FROM product_instances WHERE id = ?`, id)
	p, err := scanProductInstance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product instance: %w", err)
	}
	return p, nil
}

func (s *ProductInstanceStore) GetByStripeSessionID(sessionID string) (*model.ProductInstance, error) {
	row := s.db.QueryRow(
		`SELECT `+productInstanceCols+` FROM product_instances WHERE stripe_session_id = ?`,
		sessionID,
	)
	p, err := scanProductInstance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product instance by session: %w", err)
	}
	return p, nil
}

// ListByUser returns a user's instances, oldest first — the order the
// ledger consumes them in.
func (s *ProductInstanceStore) ListByUser(userID int64) ([]model.ProductInstance, error) {
	rows, err := s.db.Query(
		`SELECT `+productInstanceCols+` FROM product_instances WHERE user_id = ? ORDER BY created_at ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list product instances: %w", err)
	}
	defer rows.Close()

	var instances []model.ProductInstance
	for rows.Next() {
		p, err := scanProductInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product instance: %w", err)
		}
		instances = append(instances, *p)
	}
	return instances, rows.Err()
}

// MarkPaid records payment confirmation for a checkout session.
func (s *ProductInstanceStore) MarkPaid(id int64) error {
	_, err := s.db.Exec(
		`UPDATE product_instances SET payment_status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		model.PaymentStatusPaid, id,
	)
	if err != nil {
		return fmt.Errorf("mark product instance paid: %w", err)
	}
	return nil
}

// SetStatus updates the lifecycle status (e.g. cancelled).
func (s *ProductInstanceStore) SetStatus(id int64, status model.ProductStatus) error {
	_, err := s.db.Exec(
		`UPDATE product_instances SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("set product instance status: %w", err)
	}
	return nil
}
