// Package qr encodes, signs and validates the JSON payloads carried by HoloPass
// QR codes, and renders them as PNG images.
package qr

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"

	apperrors "github.com/hellhack-ui/HoloPass/internal/errors"
	"github.com/hellhack-ui/HoloPass/internal/models"
	"github.com/hellhack-ui/HoloPass/internal/types"
)

// DefaultTTL is how long a generated payload stays valid
const DefaultTTL = 24 * time.Hour

// MaxClockSkew is how far ahead of the checking clock a payload may be stamped
const MaxClockSkew = 5 * time.Minute

// DefaultImageSize is the PNG edge length in pixels
const DefaultImageSize = 256

// Payload is the content of a HoloPass QR code. Timestamp is unix milliseconds.
type Payload struct {
	Type      types.QRType `json:"type"`
	UserID    string       `json:"userId,omitempty"`
	EventID   string       `json:"eventId,omitempty"`
	StampID   string       `json:"stampId,omitempty"`
	Timestamp int64        `json:"timestamp"`
	Signature string       `json:"signature,omitempty"`
}

// Generate stamps a new payload with the current time
func Generate(typ types.QRType, userID, eventID, stampID string, now time.Time) Payload {
	return Payload{
		Type:      typ,
		UserID:    userID,
		EventID:   eventID,
		StampID:   stampID,
		Timestamp: now.UnixMilli(),
	}
}

// Encode serializes a payload to the string placed in the QR code
func Encode(p Payload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode qr payload: %w", err)
	}
	return string(data), nil
}

// Decode parses a QR string. Invalid JSON, an unknown type or a missing
// timestamp is rejected.
func Decode(raw string) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &p); err != nil {
		return nil, apperrors.NewQRInvalidError("not a HoloPass payload")
	}
	if p.Type == "" || p.Timestamp == 0 {
		return nil, apperrors.NewQRInvalidError("type and timestamp are required")
	}
	if !p.Type.IsValid() {
		return nil, apperrors.NewQRInvalidError(fmt.Sprintf("unknown type %q", p.Type))
	}
	return &p, nil
}

// IssuedAt returns the generation time
func (p Payload) IssuedAt() time.Time {
	return time.UnixMilli(p.Timestamp)
}

// Expired reports whether more than ttl has passed since generation
func (p Payload) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(p.IssuedAt()) > ttl
}

// FromFuture reports whether the payload is stamped more than MaxClockSkew after now
func (p Payload) FromFuture(now time.Time) bool {
	return p.IssuedAt().Sub(now) > MaxClockSkew
}

// Signer computes HMAC-SHA256 signatures over the payload without its signature
type Signer struct {
	secret []byte
}

// NewSigner returns a signer, or nil when secret is empty
func NewSigner(secret string) *Signer {
	if secret == "" {
		return nil
	}
	return &Signer{secret: []byte(secret)}
}

func (s *Signer) mac(p Payload) string {
	p.Signature = ""
	data, _ := json.Marshal(p) // plain struct of strings and ints
	h := hmac.New(sha256.New, s.secret)
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Sign returns p with its signature set
func (s *Signer) Sign(p Payload) Payload {
	p.Signature = s.mac(p)
	return p
}

// Verify reports whether p carries a valid signature
func (s *Signer) Verify(p Payload) bool {
	if p.Signature == "" {
		return false
	}
	expected, err := hex.DecodeString(s.mac(p))
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(p.Signature)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}

// GenerateImage renders content as a PNG data URL
func GenerateImage(content string, size int) (string, error) {
	if size <= 0 {
		size = DefaultImageSize
	}
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return "", fmt.Errorf("failed to render qr code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// CheckInValidator accepts QR data presented at an event's door
type CheckInValidator struct {
	signer *Signer
	ttl    time.Duration
	now    func() time.Time
}

// NewCheckInValidator creates a validator. A nil signer disables signature checks.
func NewCheckInValidator(signer *Signer, ttl time.Duration) *CheckInValidator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CheckInValidator{signer: signer, ttl: ttl, now: time.Now}
}

// Validate checks that raw was issued for (eventID, userAddress), is unexpired
// and, when signing is enabled, carries a valid signature. Plain RSVP tokens are
// accepted only while signing is disabled.
func (v *CheckInValidator) Validate(raw, eventID, userAddress string) error {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "{") {
		if v.signer == nil && models.MatchesRSVPToken(raw, eventID, userAddress) {
			return nil
		}
		return apperrors.NewQRInvalidError("not a HoloPass payload")
	}

	p, err := Decode(raw)
	if err != nil {
		return err
	}
	now := v.now()
	if p.Expired(now, v.ttl) {
		return apperrors.ErrQRExpired
	}
	if p.FromFuture(now) {
		return apperrors.NewQRInvalidError("timestamp is in the future")
	}
	if p.Type != types.QREventCheckIn {
		return apperrors.NewQRInvalidError("not an event check-in code")
	}
	if p.EventID != eventID {
		return apperrors.NewQRInvalidError("issued for a different event")
	}
	if p.UserID == "" || types.NormalizeAddress(p.UserID) != types.NormalizeAddress(userAddress) {
		return apperrors.NewQRInvalidError("issued for a different wallet")
	}
	if v.signer != nil && !v.signer.Verify(*p) {
		return apperrors.NewQRInvalidError("signature mismatch")
	}
	return nil
}
