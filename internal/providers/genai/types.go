package genai

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
)

// PartKind tags the variants a response part can take.
type PartKind string

const (
	PartText  PartKind = "text"
	PartImage PartKind = "image"
	PartData  PartKind = "data"
)

// Part is one decoded response part. Which fields are set depends on Kind:
// Text for PartText, MIMEType and Data for PartImage, and MIMEType with Data
// or URI for PartData.
type Part struct {
	Kind     PartKind
	Text     string
	Thought  bool
	MIMEType string
	Data     []byte
	URI      string
}

// Candidate is one model answer.
type Candidate struct {
	Parts        []Part
	FinishReason string
}

// Response is a decoded generateContent result.
type Response struct {
	Candidates  []Candidate
	BlockReason string
}

// FirstImage returns the first image part across all candidates in order.
func (r *Response) FirstImage() (Part, bool) {
	if r == nil {
		return Part{}, false
	}
	for _, c := range r.Candidates {
		for _, p := range c.Parts {
			if p.Kind == PartImage {
				return p, true
			}
		}
	}
	return Part{}, false
}

// Text concatenates the non-thought text parts, useful when the model
// explains a refusal instead of returning an image.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	var b bytes.Buffer
	for _, c := range r.Candidates {
		for _, p := range c.Parts {
			if p.Kind != PartText || p.Thought || p.Text == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// DecodeImageDimensions returns the pixel size of a PNG or JPEG, or zeros.
func DecodeImageDimensions(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
