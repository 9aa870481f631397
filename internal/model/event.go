package model

import "time"

type EventStatus string

const (
	EventStatusActive   EventStatus = "active"
	EventStatusInactive EventStatus = "inactive"
)

// ContentKind selects which quota pool and prompt template an event
// generation draws from.
type ContentKind string

const (
	KindImage ContentKind = "image"
	KindVideo ContentKind = "video"
)

// Valid reports whether k is one of the known content kinds.
func (k ContentKind) Valid() bool {
	return k == KindImage || k == KindVideo
}

// Event is a partner campaign page with its own generation quota and
// prompt templates. LimitImages/LimitVideos are the ceilings fixed at
// creation or edit; ImagesCount/VideosCount are the remaining balances
// the ledger debits.
type Event struct {
	ID           int64       `json:"id"`
	PartnerID    int64       `json:"partner_id"`
	Name         string      `json:"name"`
	Description  string      `json:"description"`
	BrandColor   string      `json:"brand_color"`
	LogoURL      string      `json:"logo_url"`
	BaseImageURL string      `json:"base_image_url"`
	PromptImage  string      `json:"prompt_image"`
	PromptVideo  string      `json:"prompt_video"`
	LimitImages  int         `json:"limit_images"`
	LimitVideos  int         `json:"limit_videos"`
	ImagesCount  int         `json:"images_count"`
	VideosCount  int         `json:"videos_count"`
	Status       EventStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Remaining returns the remaining balance for the given kind.
func (e *Event) Remaining(kind ContentKind) int {
	if kind == KindVideo {
		return e.VideosCount
	}
	return e.ImagesCount
}
