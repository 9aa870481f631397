package store

import (
	"database/sql"
	"fmt"

	"github.com/fba70/avica-ugc-sub000/internal/model"
)

type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

func scanEvent(scanner interface{ Scan(...any) error }) (*model.Event, error) {
	var e model.Event
	err := scanner.Scan(
		&e.ID, &e.PartnerID, &e.Name, &e.Description, &e.BrandColor,
		&e.LogoURL, &e.BaseImageURL, &e.PromptImage, &e.PromptVideo,
		&e.LimitImages, &e.LimitVideos, &e.ImagesCount, &e.VideosCount,
		&e.Status, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

const eventCols = `id, partner_id, name, description, brand_color, logo_url, base_image_url, prompt_image, prompt_video, limit_images, limit_videos, images_count, videos_count, status, created_at, updated_at`

// EventParams carries the partner-editable attributes of an event.
type EventParams struct {
	Name         string
	Description  string
	BrandColor   string
	LogoURL      string
	BaseImageURL string
	PromptImage  string
	PromptVideo  string
	LimitImages  int
	LimitVideos  int
}

// Create inserts a new event. Remaining counts start at the limits.
func (s *EventStore) Create(partnerID int64, p EventParams) (*model.Event, error) {
	result, err := s.db.Exec(
		`INSERT INTO events (partner_id, name, description, brand_color, logo_url, base_image_url, prompt_image, prompt_video, limit_images, limit_videos, images_count, videos_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		partnerID, p.Name, p.Description, p.BrandColor, p.LogoURL, p.BaseImageURL,
		p.PromptImage, p.PromptVideo, p.LimitImages, p.LimitVideos, p.LimitImages, p.LimitVideos,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *EventStore) GetByID(id int64) (*model.Event, error) {
	row := s.db.QueryRow(`SELECT `+eventCols+` FROM events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// ListByPartner returns a partner's events, newest first.
func (s *EventStore) ListByPartner(partnerID int64) ([]model.Event, error) {
	rows, err := s.db.Query(
		`SELECT `+eventCols+` FROM events WHERE partner_id = ? ORDER BY created_at DESC, id DESC`,
		partnerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// Update edits the partner-editable attributes. A limit change moves the
// remaining balance by the same delta, clamped into [0, limit], so
// already-consumed quota stays consumed.
func (s *EventStore) Update(id int64, p EventParams) (*model.Event, error) {
	_, err := s.db.Exec(
		`UPDATE events SET
			name = ?, description = ?, brand_color = ?, logo_url = ?, base_image_url = ?,
			prompt_image = ?, prompt_video = ?,
			images_count = MIN(MAX(images_count + (? - limit_images), 0), ?),
			videos_count = MIN(MAX(videos_count + (? - limit_videos), 0), ?),
			limit_images = ?, limit_videos = ?,
			updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		p.Name, p.Description, p.BrandColor, p.LogoURL, p.BaseImageURL,
		p.PromptImage, p.PromptVideo,
		p.LimitImages, p.LimitImages, p.LimitVideos, p.LimitVideos,
		p.LimitImages, p.LimitVideos, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return s.GetByID(id)
}

// SetStatus flips the event lifecycle status. The inactive transition is
// editor-driven, never automatic.
func (s *EventStore) SetStatus(id int64, status model.EventStatus) error {
	_, err := s.db.Exec(
		`UPDATE events SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("set event status: %w", err)
	}
	return nil
}
