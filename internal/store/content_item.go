package store

import (
	"database/sql"
	"fmt"

	"github.com/fba70/avica-ugc-sub000/internal/model"
)

type ContentItemStore struct {
	db *sql.DB
}

func NewContentItemStore(db *sql.DB) *ContentItemStore {
	return &ContentItemStore{db: db}
}

func scanContentItem(scanner interface{ Scan(...any) error }) (*model.ContentItem, error) {
	var c model.ContentItem
	var userID sql.NullInt64
	var claimToken sql.NullString
	err := scanner.Scan(
		&c.ID, &c.EventID, &userID, &claimToken, &c.Kind, &c.Name,
		&c.SourceURL, &c.OverlayURL, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		c.UserID = &userID.Int64
	}
	if claimToken.Valid {
		c.ClaimToken = &claimToken.String
	}
	return &c, nil
}

const contentItemCols = `id, event_id, user_id, claim_token, kind, name, source_url, overlay_url, created_at`

// Create persists a generated artifact. Exactly one of userID and
// claimToken must be set.
func (s *ContentItemStore) Create(eventID int64, userID *int64, claimToken string, kind model.ContentKind, name, sourceURL, overlayURL string) (*model.ContentItem, error) {
	var uid sql.NullInt64
	if userID != nil {
		uid = sql.NullInt64{Int64: *userID, Valid: true}
	}
	var token sql.NullString
	if userID == nil && claimToken != "" {
		token = sql.NullString{String: claimToken, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO content_items (event_id, user_id, claim_token, kind, name, source_url, overlay_url)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		eventID, uid, token, kind, name, sourceURL, overlayURL,
	)
	if err != nil {
		return nil, fmt.Errorf("insert content item: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ContentItemStore) GetByID(id int64) (*model.ContentItem, error) {
	row := s.db.QueryRow(`SELECT `+contentItemCols+` FROM content_items WHERE id = ?`, id)
	c, err := scanContentItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get content item: %w", err)
	}
	return c, nil
}

// ListByEvent returns an event's artifacts, newest first.
func (s *ContentItemStore) ListByEvent(eventID int64) ([]model.ContentItem, error) {
	rows, err := s.db.Query(
		`SELECT `+contentItemCols+` FROM content_items WHERE event_id = ? ORDER BY created_at DESC, id DESC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list content items: %w", err)
	}
	defer rows.Close()
	return collectContentItems(rows)
}

// ListByUser returns a user's claimed artifacts, newest first.
func (s *ContentItemStore) ListByUser(userID int64) ([]model.ContentItem, error) {
	rows, err := s.db.Query(
		`SELECT `+contentItemCols+` FROM content_items WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list content items by user: %w", err)
	}
	defer rows.Close()
	return collectContentItems(rows)
}

func collectContentItems(rows *sql.Rows) ([]model.ContentItem, error) {
	var items []model.ContentItem
	for rows.Next() {
		c, err := scanContentItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan content item: %w", err)
		}
		items = append(items, *c)
	}
	return items, rows.Err()
}

// Claim transfers ownership of all items carrying the token to the user
// and clears the token. Claiming a spent token is a no-op; it returns
// the number of items transferred.
func (s *ContentItemStore) Claim(claimToken string, userID int64) (int64, error) {
	result, err := s.db.Exec(
		`UPDATE content_items SET user_id = ?, claim_token = NULL WHERE claim_token = ?`,
		userID, claimToken,
	)
	if err != nil {
		return 0, fmt.Errorf("claim content items: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// CountByEvent returns how many artifacts of each kind exist for an event.
func (s *ContentItemStore) CountByEvent(eventID int64) (images, videos int, err error) {
	err = s.db.QueryRow(
		`SELECT
			COALESCE(SUM(CASE WHEN kind = 'image' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = 'video' THEN 1 ELSE 0 END), 0)
		 FROM content_items WHERE event_id = ?`,
		eventID,
	).Scan(&images, &videos)
	if err != nil {
		return 0, 0, fmt.Errorf("count content items: %w", err)
	}
	return images, videos, nil
}
