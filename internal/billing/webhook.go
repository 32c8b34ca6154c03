package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
	SignatureHeader = "X-Billing-Signature"

	EventPaymentSucceeded = "payment.succeeded"
)

var ErrBadSignature = errors.New("billing: invalid webhook signature")

// Event is the part of a webhook payload the service acts on.
type Event struct {
	Type      string
	Reference string
}

// Sign returns the signature a sender puts in SignatureHeader.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks header against body. An empty secret rejects every
// request. A "sha256=" prefix on the header is accepted.
func VerifySignature(secret string, body []byte, header string) error {
	if secret == "" {
		return ErrBadSignature
	}
	got, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(header), "sha256="))
	if err != nil || len(got) != sha256.Size {
		return ErrBadSignature
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return ErrBadSignature
	}
	return nil
}

// ParseEvent reads {"type": ..., "data": {"reference": ...}}. A top-level
// "reference" is accepted as well.
func ParseEvent(body []byte) (Event, error) {
	if !gjson.ValidBytes(body) {
		return Event{}, errors.New("billing: malformed webhook payload")
	}
	res := gjson.GetManyBytes(body, "type", "data.reference", "reference")
	ev := Event{Type: res[0].String(), Reference: res[1].String()}
	if ev.Reference == "" {
		ev.Reference = res[2].String()
	}
	if ev.Type == "" {
		return Event{}, errors.New("billing: webhook event without type")
	}
	return ev, nil
}
