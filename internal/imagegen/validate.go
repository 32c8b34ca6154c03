package imagegen

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"drawtica/internal/domain"
)

var formatForMIME = map[string]string{
	domain.MIMEJPEG: "jpeg",
	domain.MIMEPNG:  "png",
}

// ParseDataURI decodes a "data:<mime>;base64,<payload>" upload. The size
// ceiling is enforced from the encoded length first so oversized payloads are
// refused without being decoded.
func ParseDataURI(uri string) (domain.Upload, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(uri), "data:")
	if !ok {
		return domain.Upload{}, fmt.Errorf("%w: not a data uri", domain.ErrMalformedImage)
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return domain.Upload{}, fmt.Errorf("%w: missing payload separator", domain.ErrMalformedImage)
	}
	mime, encoding, _ := strings.Cut(header, ";")
	mime = strings.ToLower(strings.TrimSpace(mime))
	if _, ok := formatForMIME[mime]; !ok {
		return domain.Upload{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedMediaType, mime)
	}
	if !strings.EqualFold(strings.TrimSpace(encoding), "base64") {
		return domain.Upload{}, fmt.Errorf("%w: payload is not base64", domain.ErrMalformedImage)
	}
	if decodedLen(payload) > domain.MaxUploadBytes {
		return domain.Upload{}, fmt.Errorf("%w: %d bytes", domain.ErrPayloadTooLarge, decodedLen(payload))
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return domain.Upload{}, fmt.Errorf("%w: %v", domain.ErrMalformedImage, err)
	}
	return ValidateUpload(mime, data)
}

// ValidateUpload checks raw bytes against the declared type and size ceiling.
// The bytes must decode as the declared format.
func ValidateUpload(mime string, data []byte) (domain.Upload, error) {
	mime = strings.ToLower(strings.TrimSpace(mime))
	want, ok := formatForMIME[mime]
	if !ok {
		return domain.Upload{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedMediaType, mime)
	}
	if len(data) == 0 {
		return domain.Upload{}, fmt.Errorf("%w: empty payload", domain.ErrMalformedImage)
	}
	if len(data) > domain.MaxUploadBytes {
		return domain.Upload{}, fmt.Errorf("%w: %d bytes", domain.ErrPayloadTooLarge, len(data))
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return domain.Upload{}, fmt.Errorf("%w: %v", domain.ErrMalformedImage, err)
	}
	if format != want {
		return domain.Upload{}, fmt.Errorf("%w: declared %s but found %s", domain.ErrMalformedImage, mime, format)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return domain.Upload{}, fmt.Errorf("%w: empty image", domain.ErrMalformedImage)
	}
	return domain.Upload{Data: data, MIMEType: mime}, nil
}

// decodedLen is the exact decoded size of a padded base64 payload.
func decodedLen(payload string) int {
	n := base64.StdEncoding.DecodedLen(len(payload))
	if strings.HasSuffix(payload, "==") {
		n -= 2
	} else if strings.HasSuffix(payload, "=") {
		n--
	}
	return n
}
