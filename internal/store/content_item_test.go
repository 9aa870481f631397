package store

import (
	"testing"

	"github.com/fba70/avica-ugc-sub000/internal/database"
	"github.com/fba70/avica-ugc-sub000/internal/model"
)

func setupContentTestDB(t *testing.T) (*ContentItemStore, *EventStore, *UserStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewContentItemStore(db), NewEventStore(db), NewUserStore(db)
}

func createTestEvent(t *testing.T, es *EventStore, partnerID int64) *model.Event {
	t.Helper()
	event, err := es.Create(partnerID, EventParams{Name: "Fest", PromptImage: "p", LimitImages: 10, LimitVideos: 5})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return event
}

func TestContentItemCreateAnonymous(t *testing.T) {
	cis, es, us := setupContentTestDB(t)
	partner := createTestPartner(t, us)
	event := createTestEvent(t, es, partner.ID)

	item, err := cis.Create(event.ID, nil, "tok-123", model.KindImage, "Ana", "https://cdn/src.png", "https://cdn/overlay.png")
	if err != nil {
		t.Fatalf("create content item: %v", err)
	}
	if item.UserID != nil {
		t.Errorf("UserID = %v, want nil", *item.UserID)
	}
	if item.ClaimToken == nil || *item.ClaimToken != "tok-123" {
		t.Errorf("ClaimToken = %v, want tok-123", item.ClaimToken)
	}
	if item.Kind != model.KindImage {
		t.Errorf("Kind = %q", item.Kind)
	}
	if item.OverlayURL != "https://cdn/overlay.png" {
		t.Errorf("OverlayURL = %q", item.OverlayURL)
	}
}

func TestContentItemCreateOwned(t *testing.T) {
	cis, es, us := setupContentTestDB(t)
	partner := createTestPartner(t, us)
	event := createTestEvent(t, es, partner.ID)

	item, err := cis.Create(event.ID, &partner.ID, "", model.KindVideo, "Ana", "https://cdn/src.mp4", "")
	if err != nil {
		t.Fatalf("create content item: %v", err)
	}
	if item.UserID == nil || *item.UserID != partner.ID {
		t.Errorf("UserID = %v, want %d", item.UserID, partner.ID)
	}
	if item.ClaimToken != nil {
		t.Errorf("ClaimToken = %v, want nil", *item.ClaimToken)
	}
}

func TestContentItemClaim(t *testing.T) {
	cis, es, us := setupContentTestDB(t)
	partner := createTestPartner(t, us)
	event := createTestEvent(t, es, partner.ID)

	fan, err := us.Create("fan@example.com", "hash", "fan")
	if err != nil {
		t.Fatalf("create fan: %v", err)
	}

	item, err := cis.Create(event.ID, nil, "tok-abc", model.KindImage, "Ana", "https://cdn/src.png", "")
	if err != nil {
		t.Fatalf("create content item: %v", err)
	}

	n, err := cis.Claim("tok-abc", fan.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if n != 1 {
		t.Fatalf("claimed = %d, want 1", n)
	}

	got, err := cis.GetByID(item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.UserID == nil || *got.UserID != fan.ID {
		t.Errorf("UserID = %v, want %d", got.UserID, fan.ID)
	}
	if got.ClaimToken != nil {
		t.Errorf("ClaimToken = %v, want cleared", *got.ClaimToken)
	}

	// Spent token is a no-op: ownership does not move again
	other, err := us.Create("other@example.com", "hash", "fan")
	if err != nil {
		t.Fatalf("create other: %v", err)
	}
	n, err = cis.Claim("tok-abc", other.ID)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if n != 0 {
		t.Errorf("second claim = %d, want 0", n)
	}
	got, _ = cis.GetByID(item.ID)
	if *got.UserID != fan.ID {
		t.Errorf("UserID = %d, ownership moved on spent token", *got.UserID)
	}
}

func TestContentItemClaimUnknownToken(t *testing.T) {
	cis, _, us := setupContentTestDB(t)
	fan, err := us.Create("fan@example.com", "hash", "fan")
	if err != nil {
		t.Fatalf("create fan: %v", err)
	}

	n, err := cis.Claim("no-such-token", fan.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if n != 0 {
		t.Errorf("claimed = %d, want 0", n)
	}
}

func TestContentItemLists(t *testing.T) {
	cis, es, us := setupContentTestDB(t)
	partner := createTestPartner(t, us)
	event := createTestEvent(t, es, partner.ID)

	if _, err := cis.Create(event.ID, &partner.ID, "", model.KindImage, "A", "u1", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := cis.Create(event.ID, nil, "tok", model.KindVideo, "B", "u2", ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	byEvent, err := cis.ListByEvent(event.ID)
	if err != nil {
		t.Fatalf("list by event: %v", err)
	}
	if len(byEvent) != 2 {
		t.Errorf("by event = %d, want 2", len(byEvent))
	}

	byUser, err := cis.ListByUser(partner.ID)
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(byUser) != 1 {
		t.Errorf("by user = %d, want 1", len(byUser))
	}

	images, videos, err := cis.CountByEvent(event.ID)
	if err != nil {
		t.Fatalf("count by event: %v", err)
	}
	if images != 1 || videos != 1 {
		t.Errorf("counts = %d/%d, want 1/1", images, videos)
	}
}
