package model

import "time"

// ContentItem is one generated, branded artifact tied to an event.
// Exactly one of UserID and ClaimToken is set: anonymous creations
// carry a claim token until a user claims them, which transfers
// ownership and clears the token.
type ContentItem struct {
	ID         int64       `json:"id"`
	EventID    int64       `json:"event_id"`
	UserID     *int64      `json:"user_id,omitempty"`
	ClaimToken *string     `json:"claim_token,omitempty"`
	Kind       ContentKind `json:"kind"`
	Name       string      `json:"name"`
	SourceURL  string      `json:"source_url"`
	OverlayURL string      `json:"overlay_url,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}
