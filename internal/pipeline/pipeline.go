package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/fba70/avica-ugc-sub000/internal/assets"
	"github.com/fba70/avica-ugc-sub000/internal/generation"
	"github.com/fba70/avica-ugc-sub000/internal/ledger"
	"github.com/fba70/avica-ugc-sub000/internal/model"
	"github.com/fba70/avica-ugc-sub000/internal/overlay"
	"github.com/fba70/avica-ugc-sub000/internal/store"
)

// Output canvas geometry. Fixed for every event page.
const (
	canvasWidth  = 1080
	canvasHeight = 1080
	bandHeight   = 160
	logoBoxWidth = 280
)

// Generator produces media from a source photo and event prompts.
type Generator interface {
	Generate(ctx context.Context, req generation.Request) (*generation.Asset, error)
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Uploader stores finished media and returns public locations.
type Uploader interface {
	Upload(ctx context.Context, prefix string, data []byte, contentType string) (*assets.Object, error)
}

// Notifier receives completed creations, e.g. for live event feeds.
type Notifier interface {
	ContentCreated(item *model.ContentItem, remaining int)
}

// Pipeline runs the full creation flow: validate, check quota,
// generate, compose, upload, persist, debit. Quota is only debited for
// a fully persisted artifact.
type Pipeline struct {
	events   *store.EventStore
	items    *store.ContentItemStore
	ledger   *ledger.Ledger
	gen      Generator
	uploads  Uploader
	notifier Notifier
	logger   *slog.Logger
}

func New(events *store.EventStore, items *store.ContentItemStore, l *ledger.Ledger, gen Generator, uploads Uploader, notifier Notifier, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		events:   events,
		items:    items,
		ledger:   l,
		gen:      gen,
		uploads:  uploads,
		notifier: notifier,
		logger:   logger,
	}
}

// CreateParams carries one creation request.
type CreateParams struct {
	EventID     int64
	Kind        model.ContentKind
	Name        string // creator's display name, rendered into the caption
	UserID      *int64 // nil for anonymous creators
	SourceImage string // user photo: URL or data URI
}

// CreateResult is a successful creation. ClaimToken is set only for
// anonymous creators.
type CreateResult struct {
	Item       *model.ContentItem
	ClaimToken string
	Remaining  int
}

// CreateContent runs the pipeline for one request. Failures before
// persistence leave no record and no debit; a debit failure after
// persistence is logged for reconciliation but does not fail the
// request.
func (p *Pipeline) CreateContent(ctx context.Context, params CreateParams) (*CreateResult, error) {
	if !params.Kind.Valid() {
		return nil, errf(KindValidation, "unknown content kind %q", params.Kind)
	}
	if params.SourceImage == "" {
		return nil, errf(KindValidation, "source image is required")
	}
	if params.Name == "" {
		return nil, errf(KindValidation, "name is required")
	}

	event, err := p.events.GetByID(params.EventID)
	if err != nil {
		return nil, wrapErr(KindValidation, err)
	}
	if event == nil {
		return nil, errf(KindValidation, "event %d not found", params.EventID)
	}
	if event.Status != model.EventStatusActive {
		return nil, errf(KindValidation, "event %d is not active", params.EventID)
	}

	ok, err := p.ledger.CheckAvailable(event.ID, params.Kind)
	if err != nil {
		return nil, wrapErr(KindLedger, err)
	}
	if !ok {
		return nil, errf(KindQuotaExhausted, "event %d has no %s quota left", event.ID, params.Kind)
	}

	prompt := event.PromptImage
	if params.Kind == model.KindVideo {
		prompt = event.PromptVideo
	}
	asset, err := p.gen.Generate(ctx, generation.Request{
		Kind:        params.Kind,
		SourceImage: params.SourceImage,
		BaseImage:   event.BaseImageURL,
		Prompt:      prompt,
	})
	if err != nil {
		return nil, wrapErr(KindGeneration, err)
	}

	raw, rawType, err := p.assetBytes(ctx, asset)
	if err != nil {
		return nil, wrapErr(KindGeneration, err)
	}

	var overlaid []byte
	if params.Kind == model.KindImage {
		overlaid, err = p.compose(ctx, event, params.Name, raw)
		if err != nil {
			return nil, wrapErr(KindComposition, err)
		}
	}

	prefix := fmt.Sprintf("events/%d", event.ID)
	var sourceObj, overlayObj *assets.Object
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sourceObj, err = p.uploads.Upload(gctx, prefix, raw, rawType)
		return err
	})
	if overlaid != nil {
		g.Go(func() error {
			var err error
			overlayObj, err = p.uploads.Upload(gctx, prefix, overlaid, "image/png")
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, wrapErr(KindStorage, err)
	}

	var claimToken string
	if params.UserID == nil {
		claimToken = uuid.NewString()
	}
	var overlayURL string
	if overlayObj != nil {
		overlayURL = overlayObj.PublicURL
	}
	item, err := p.items.Create(event.ID, params.UserID, claimToken, params.Kind, params.Name, sourceObj.PublicURL, overlayURL)
	if err != nil {
		// Uploads already happened; the objects are orphaned until an
		// operator cleans them up.
		p.logger.Error("persist failed after upload, orphaned assets need cleanup",
			"event_id", event.ID, "source_key", sourceObj.Key, "overlay_url", overlayURL, "error", err)
		return nil, wrapErr(KindPersistence, err)
	}

	remaining := event.Remaining(params.Kind) - 1
	debit, err := p.ledger.Debit(ctx, event.ID, params.Kind)
	if err != nil {
		// The artifact exists; losing it over a debit failure would
		// punish the creator. Flag for reconciliation instead.
		p.logger.Error("quota debit failed after persist, needs reconciliation",
			"event_id", event.ID, "content_item_id", item.ID, "kind", params.Kind, "error", err)
	} else {
		remaining = debit.EventRemaining
	}

	p.logger.Info("content created",
		"event_id", event.ID, "content_item_id", item.ID, "kind", params.Kind, "remaining", remaining)

	if p.notifier != nil {
		p.notifier.ContentCreated(item, remaining)
	}

	return &CreateResult{Item: item, ClaimToken: claimToken, Remaining: remaining}, nil
}

// assetBytes resolves a normalized generation asset to raw bytes and a
// content type, downloading URL outputs.
func (p *Pipeline) assetBytes(ctx context.Context, asset *generation.Asset) ([]byte, string, error) {
	var data []byte
	switch {
	case asset.Base64 != "":
		decoded, err := base64.StdEncoding.DecodeString(asset.Base64)
		if err != nil {
			return nil, "", fmt.Errorf("decode asset payload: %w", err)
		}
		data = decoded
	case asset.URL != "":
		fetched, err := p.gen.Fetch(ctx, asset.URL)
		if err != nil {
			return nil, "", err
		}
		data = fetched
	default:
		return nil, "", fmt.Errorf("generation asset has neither URL nor payload")
	}

	contentType := asset.MIME
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

// compose brands a generated image: scaled onto the canvas, bottom band
// in the event's color, caption on the left, logo fit into the right
// box.
func (p *Pipeline) compose(ctx context.Context, event *model.Event, name string, raw []byte) ([]byte, error) {
	base, err := overlay.Decode(raw)
	if err != nil {
		return nil, err
	}

	var logo image.Image
	if event.LogoURL != "" {
		logoData, err := p.gen.Fetch(ctx, event.LogoURL)
		if err != nil {
			p.logger.Warn("logo fetch failed, composing without logo", "event_id", event.ID, "error", err)
		} else if decoded, err := overlay.Decode(logoData); err != nil {
			p.logger.Warn("logo decode failed, composing without logo", "event_id", event.ID, "error", err)
		} else {
			logo = decoded
		}
	}

	bandTop := canvasHeight - bandHeight
	img, err := overlay.Compose(base, overlay.Options{
		CanvasWidth:  canvasWidth,
		CanvasHeight: canvasHeight,
		BandColor:    parseHexColor(event.BrandColor),
		BandHeight:   bandHeight,
		Caption:      fmt.Sprintf("%s @ %s", name, event.Name),
		CaptionColor: color.White,
		Logo:         logo,
		LogoBox:      image.Rect(canvasWidth-logoBoxWidth, bandTop, canvasWidth, canvasHeight),
	})
	if err != nil {
		return nil, err
	}
	return overlay.EncodePNG(img)
}

// parseHexColor parses #RGB or #RRGGBB, defaulting to black.
func parseHexColor(s string) color.Color {
	hexVal := func(b byte) (uint8, bool) {
		switch {
		case b >= '0' && b <= '9':
			return b - '0', true
		case b >= 'a' && b <= 'f':
			return b - 'a' + 10, true
		case b >= 'A' && b <= 'F':
			return b - 'A' + 10, true
		}
		return 0, false
	}

	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}
	c := color.RGBA{A: 0xff}
	switch len(s) {
	case 6:
		vals := make([]uint8, 6)
		for i := 0; i < 6; i++ {
			v, ok := hexVal(s[i])
			if !ok {
				return color.RGBA{A: 0xff}
			}
			vals[i] = v
		}
		c.R = vals[0]<<4 | vals[1]
		c.G = vals[2]<<4 | vals[3]
		c.B = vals[4]<<4 | vals[5]
	case 3:
		for i, dst := range []*uint8{&c.R, &c.G, &c.B} {
			v, ok := hexVal(s[i])
			if !ok {
				return color.RGBA{A: 0xff}
			}
			*dst = v<<4 | v
		}
	default:
		return color.RGBA{A: 0xff}
	}
	return c
}
