package model

import "time"

type ProductStatus string

const (
	ProductStatusActive    ProductStatus = "active"
	ProductStatusCancelled ProductStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
)

// ProductInstance is a purchased capacity package. It is created unpaid
// when checkout starts and becomes paid once the payment webhook
// confirms the session. The ledger consumes instances oldest-first.
type ProductInstance struct {
	ID              int64         `json:"id"`
	UserID          int64         `json:"user_id"`
	Plan            string        `json:"plan"`
	Status          ProductStatus `json:"status"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	StripeSessionID *string       `json:"stripe_session_id,omitempty"`
	LimitImages     int           `json:"limit_images"`
	LimitVideos     int           `json:"limit_videos"`
	ImagesCount     int           `json:"images_count"`
	VideosCount     int           `json:"videos_count"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}
