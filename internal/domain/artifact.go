package domain

const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"

	// MaxUploadBytes is the decoded size ceiling for an uploaded image.
	MaxUploadBytes = 5 << 20
)

// Upload is a validated input image. It lives only for one request.
type Upload struct {
	Data     []byte
	MIMEType string
}

// Size returns the decoded byte length.
func (u Upload) Size() int {
	return len(u.Data)
}

// Artifact is the generated line-art image returned by the model.
type Artifact struct {
	Data     []byte
	MIMEType string
	Width    int
	Height   int
}
