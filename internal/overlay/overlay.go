package overlay

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const captionPadding = 16

// Options describes the branding composited onto a generated image.
// Geometry is fixed per event page, not per request.
type Options struct {
	CanvasWidth  int
	CanvasHeight int

	BandColor  color.Color
	BandHeight int

	Caption      string
	CaptionColor color.Color

	Logo    image.Image // optional
	LogoBox image.Rectangle
}

// Decode decodes PNG or JPEG bytes into an image.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// EncodePNG flattens an image to PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// ComputeLogoRect fits a logo into the destination box preserving aspect
// ratio. Wider-than-box logos take the full box width and center
// vertically; taller ones take the full box height and stick to the top.
// Both variants anchor to the right edge so the logo never drifts into
// the caption area.
func ComputeLogoRect(logo, box image.Rectangle) image.Rectangle {
	logoW, logoH := logo.Dx(), logo.Dy()
	boxW, boxH := box.Dx(), box.Dy()
	if logoW <= 0 || logoH <= 0 || boxW <= 0 || boxH <= 0 {
		return image.Rectangle{}
	}

	// Compare aspect ratios without division: logoW/logoH > boxW/boxH.
	if logoW*boxH > boxW*logoH {
		// Width-fit: full box width, vertically centered.
		drawH := logoH * boxW / logoW
		dy := box.Min.Y + (boxH-drawH)/2
		return image.Rect(box.Max.X-boxW, dy, box.Max.X, dy+drawH)
	}

	// Height-fit: full box height, right-aligned, top-aligned.
	drawW := logoW * boxH / logoH
	return image.Rect(box.Max.X-drawW, box.Min.Y, box.Max.X, box.Min.Y+boxH)
}

// Compose flattens the base image, the branded band with caption text,
// and the logo into a single canvas. Pure given identical inputs.
func Compose(base image.Image, opts Options) (*image.RGBA, error) {
	if base == nil {
		return nil, fmt.Errorf("compose: base image is nil")
	}
	if opts.CanvasWidth <= 0 || opts.CanvasHeight <= 0 {
		return nil, fmt.Errorf("compose: invalid canvas %dx%d", opts.CanvasWidth, opts.CanvasHeight)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, opts.CanvasWidth, opts.CanvasHeight))
	xdraw.ApproxBiLinear.Scale(canvas, canvas.Bounds(), base, base.Bounds(), xdraw.Src, nil)

	if opts.BandHeight > 0 {
		bandColor := opts.BandColor
		if bandColor == nil {
			bandColor = color.Black
		}
		band := image.Rect(0, opts.CanvasHeight-opts.BandHeight, opts.CanvasWidth, opts.CanvasHeight)
		draw.Draw(canvas, band, image.NewUniform(bandColor), image.Point{}, draw.Src)

		if opts.Caption != "" {
			drawCaption(canvas, band, opts)
		}
	}

	if opts.Logo != nil {
		dst := ComputeLogoRect(opts.Logo.Bounds(), opts.LogoBox)
		if !dst.Empty() {
			xdraw.ApproxBiLinear.Scale(canvas, dst, opts.Logo, opts.Logo.Bounds(), xdraw.Over, nil)
		}
	}

	return canvas, nil
}

// drawCaption renders the caption into its own layer sized to the text
// region, then composites it. Text that would run past the region is
// clipped, not wrapped.
func drawCaption(canvas *image.RGBA, band image.Rectangle, opts Options) {
	region := image.Rect(
		band.Min.X+captionPadding, band.Min.Y,
		band.Max.X-captionPadding, band.Max.Y,
	)
	if opts.Logo != nil && opts.LogoBox.Min.X > region.Min.X {
		region.Max.X = opts.LogoBox.Min.X - captionPadding
	}
	if region.Empty() {
		return
	}

	captionColor := opts.CaptionColor
	if captionColor == nil {
		captionColor = color.White
	}

	face := basicfont.Face7x13
	layer := image.NewRGBA(image.Rect(0, 0, region.Dx(), region.Dy()))
	drawer := &font.Drawer{
		Dst:  layer,
		Src:  image.NewUniform(captionColor),
		Face: face,
		Dot: fixed.Point26_6{
			X: 0,
			Y: fixed.I((region.Dy() + face.Ascent - face.Descent) / 2),
		},
	}
	drawer.DrawString(opts.Caption)

	draw.Draw(canvas, region, layer, image.Point{}, draw.Over)
}
