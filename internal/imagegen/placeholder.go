package imagegen

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"

	"drawtica/internal/providers/genai"
)

// PlaceholderSide is the width and height of the mock-mode artifact.
const PlaceholderSide = 100

// PlaceholderModel stands in for Gemini when USE_MOCK_MODEL is set. It
// returns the same 100x100 line drawing whatever the input.
type PlaceholderModel struct{}

func (PlaceholderModel) GenerateContent(ctx context.Context, instruction string, data []byte, mime string) (*genai.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	art, err := placeholderArt()
	if err != nil {
		return nil, err
	}
	return &genai.Response{Candidates: []genai.Candidate{{
		Parts: []genai.Part{
			{Kind: genai.PartText, Text: "placeholder line art"},
			{Kind: genai.PartImage, MIMEType: "image/png", Data: bytes.Clone(art)},
		},
		FinishReason: "STOP",
	}}}, nil
}

var placeholderArt = sync.OnceValues(func() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, drawPlaceholder(PlaceholderSide)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
})

// drawPlaceholder draws a framed outline of a sun on white.
func drawPlaceholder(side int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, side, side))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	ink := color.Gray{}
	for i := 0; i < side; i++ {
		img.SetGray(i, 0, ink)
		img.SetGray(i, side-1, ink)
		img.SetGray(0, i, ink)
		img.SetGray(side-1, i, ink)
	}

	c, r := side/2, side/5
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			dx, dy := x-c, y-c
			d := dx*dx + dy*dy
			if d >= (r-1)*(r-1) && d <= r*r {
				img.SetGray(x, y, ink)
			}
		}
	}
	for i := r + 4; i < 2*r; i++ {
		img.SetGray(c+i, c, ink)
		img.SetGray(c-i, c, ink)
		img.SetGray(c, c+i, ink)
		img.SetGray(c, c-i, ink)
	}
	return img
}

var _ Model = PlaceholderModel{}
