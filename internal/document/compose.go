// Package document renders a generated artifact into a printable single-page
// A4 PDF and can recover the exact artifact bytes from that PDF.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"math"
	"time"

	"github.com/go-pdf/fpdf"

	"drawtica/internal/domain"
)

// Page geometry in PDF points (A4 portrait).
const (
	PageWidth  = 595.0
	PageHeight = 842.0
	Margin     = 20.0

	usableWidth  = PageWidth - 2*Margin
	usableHeight = PageHeight - 2*Margin

	attachmentName = "coloring-page"
)

// documentEpoch pins the info dictionary dates so equal input gives equal bytes.
var documentEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

var ErrInvalidDimensions = errors.New("document: artifact has no usable dimensions")

// Placement is where the artifact lands on the page, in points.
type Placement struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
	Scale  float64
}

// Document is the composed output.
type Document struct {
	PDF       []byte
	Preview   domain.Artifact
	Placement Placement
}

// Place fits a w×h image inside the margins, preserving aspect ratio and
// centering it. Small images are scaled up to fill the usable area.
func Place(w, h int) (Placement, error) {
	if w <= 0 || h <= 0 {
		return Placement{}, ErrInvalidDimensions
	}
	scale := math.Min(usableWidth/float64(w), usableHeight/float64(h))
	pw := float64(w) * scale
	ph := float64(h) * scale
	return Placement{
		X:      (PageWidth - pw) / 2,
		Y:      (PageHeight - ph) / 2,
		Width:  pw,
		Height: ph,
		Scale:  scale,
	}, nil
}

// Compose renders art onto a white A4 page. The original bytes are also
// attached to the PDF so ExtractArtifact can return them unchanged.
func Compose(art domain.Artifact) (Document, error) {
	place, err := Place(art.Width, art.Height)
	if err != nil {
		return Document{}, err
	}
	imageType, err := fpdfImageType(art.MIMEType)
	if err != nil {
		return Document{}, err
	}

	pdf, err := render(art, art.Data, imageType, place)
	if err != nil && imageType == "PNG" {
		// fpdf rejects 16-bit and interlaced PNGs; re-encode and try once more.
		normalized, nerr := normalizePNG(art.Data)
		if nerr != nil {
			return Document{}, fmt.Errorf("compose: %w", err)
		}
		flat := art
		flat.Data = normalized
		pdf, err = render(flat, art.Data, imageType, place)
	}
	if err != nil {
		return Document{}, fmt.Errorf("compose: %w", err)
	}
	return Document{PDF: pdf, Preview: art, Placement: place}, nil
}

// render draws art on the page and attaches original, which differs from
// art.Data only when the PNG had to be re-encoded for fpdf.
func render(art domain.Artifact, original []byte, imageType string, place Placement) ([]byte, error) {
	f := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: PageWidth, Ht: PageHeight},
	})
	f.SetCreationDate(documentEpoch)
	f.SetModificationDate(documentEpoch)
	f.SetCatalogSort(true)
	f.SetCreator("drawtica", false)
	f.SetTitle("Coloring page", false)
	f.SetAutoPageBreak(false, 0)
	f.SetMargins(0, 0, 0)
	f.SetAttachments([]fpdf.Attachment{{
		Content:  original,
		Filename: attachmentName + extensionFor(art.MIMEType),
	}})

	f.AddPage()
	f.SetFillColor(255, 255, 255)
	f.Rect(0, 0, PageWidth, PageHeight, "F")

	opts := fpdf.ImageOptions{ImageType: imageType}
	f.RegisterImageOptionsReader(attachmentName, opts, bytes.NewReader(art.Data))
	if err := f.Error(); err != nil {
		return nil, err
	}
	f.ImageOptions(attachmentName, place.X, place.Y, place.Width, place.Height, false, opts, 0, "")

	var buf bytes.Buffer
	if err := f.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func fpdfImageType(mime string) (string, error) {
	switch mime {
	case domain.MIMEPNG:
		return "PNG", nil
	case domain.MIMEJPEG:
		return "JPG", nil
	default:
		return "", fmt.Errorf("document: unsupported artifact type %q", mime)
	}
}

func extensionFor(mime string) string {
	if mime == domain.MIMEJPEG {
		return ".jpg"
	}
	return ".png"
}

func normalizePNG(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	dst := image.NewNRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
