package qr

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/hellhack-ui/HoloPass/internal/errors"
	"github.com/hellhack-ui/HoloPass/internal/models"
	"github.com/hellhack-ui/HoloPass/internal/types"
)

const wallet = "0xAbCdEf0123456789aBcDeF0123456789AbCdEf01"

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid", `{"type":"event_checkin","eventId":"demo-1","timestamp":1700000000000}`, false},
		{"not json", `holopass`, true},
		{"missing type", `{"timestamp":1700000000000}`, true},
		{"missing timestamp", `{"type":"holopass"}`, true},
		{"unknown type", `{"type":"ticket","timestamp":1}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Decode(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperrors.CodeQRInvalid, apperrors.Categorize(err).Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, types.QREventCheckIn, p.Type)
		})
	}
}

func TestPayload_Expired(t *testing.T) {
	issued := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := Generate(types.QRHoloPass, wallet, "", "", issued)

	assert.False(t, p.Expired(issued.Add(23*time.Hour), DefaultTTL))
	assert.False(t, p.Expired(issued.Add(24*time.Hour), DefaultTTL))
	assert.True(t, p.Expired(issued.Add(24*time.Hour+time.Millisecond), DefaultTTL))
}

func TestPayload_FromFuture(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, Generate(types.QRHoloPass, wallet, "", "", now).FromFuture(now))
	assert.False(t, Generate(types.QRHoloPass, wallet, "", "", now.Add(MaxClockSkew)).FromFuture(now))
	assert.True(t, Generate(types.QRHoloPass, wallet, "", "", now.Add(MaxClockSkew+time.Millisecond)).FromFuture(now))
	assert.True(t, Generate(types.QRHoloPass, wallet, "", "", now.Add(365*24*time.Hour)).FromFuture(now))
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("decode(encode(p)) == p", prop.ForAll(
		func(user, event string, ts int64) bool {
			p := Payload{Type: types.QREventCheckIn, UserID: user, EventID: event, Timestamp: ts}
			raw, err := Encode(p)
			if err != nil {
				return false
			}
			got, err := Decode(raw)
			return err == nil && *got == p
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.Int64Range(1, 1<<50),
	))

	properties.TestingRun(t)
}

func TestSigner(t *testing.T) {
	assert.Nil(t, NewSigner(""))

	s := NewSigner("secret")
	p := s.Sign(Generate(types.QREventCheckIn, wallet, "demo-1", "", time.Now()))
	require.NotEmpty(t, p.Signature)
	assert.True(t, s.Verify(p))

	tampered := p
	tampered.EventID = "demo-2"
	assert.False(t, s.Verify(tampered))

	assert.False(t, NewSigner("other").Verify(p))

	unsigned := p
	unsigned.Signature = ""
	assert.False(t, s.Verify(unsigned))
}

func TestSigner_TamperProperty(t *testing.T) {
	s := NewSigner("secret")
	properties := gopter.NewProperties(nil)

	properties.Property("changing the event invalidates the signature", prop.ForAll(
		func(event, other string) bool {
			if event == other {
				return true
			}
			p := s.Sign(Payload{Type: types.QREventCheckIn, UserID: wallet, EventID: event, Timestamp: 1})
			p.EventID = other
			return !s.Verify(p)
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestGenerateImage(t *testing.T) {
	img, err := GenerateImage("holopass-rsvp-demo-1-0xabc-1", 0)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(img, "data:image/png;base64,"))
}

func newValidator(signer *Signer, now time.Time) *CheckInValidator {
	v := NewCheckInValidator(signer, DefaultTTL)
	v.now = func() time.Time { return now }
	return v
}

func encode(t *testing.T, p Payload) string {
	t.Helper()
	data, err := json.Marshal(p)
	require.NoError(t, err)
	return string(data)
}

func TestCheckInValidator(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	signer := NewSigner("secret")
	fresh := Generate(types.QREventCheckIn, wallet, "demo-1", "", now.Add(-time.Hour))

	t.Run("signed payload accepted", func(t *testing.T) {
		v := newValidator(signer, now)
		assert.NoError(t, v.Validate(encode(t, signer.Sign(fresh)), "demo-1", strings.ToLower(wallet)))
	})

	t.Run("unsigned payload rejected when signing enabled", func(t *testing.T) {
		v := newValidator(signer, now)
		assert.Error(t, v.Validate(encode(t, fresh), "demo-1", wallet))
	})

	t.Run("unsigned payload accepted when signing disabled", func(t *testing.T) {
		v := newValidator(nil, now)
		assert.NoError(t, v.Validate(encode(t, fresh), "demo-1", wallet))
	})

	t.Run("expired", func(t *testing.T) {
		old := signer.Sign(Generate(types.QREventCheckIn, wallet, "demo-1", "", now.Add(-25*time.Hour)))
		err := newValidator(signer, now).Validate(encode(t, old), "demo-1", wallet)
		assert.ErrorIs(t, err, apperrors.ErrQRExpired)
	})

	t.Run("future timestamp without signing", func(t *testing.T) {
		future := Generate(types.QREventCheckIn, wallet, "demo-1", "", now.Add(30*24*time.Hour))
		err := newValidator(nil, now).Validate(encode(t, future), "demo-1", wallet)
		assert.Equal(t, apperrors.CodeQRInvalid, apperrors.Categorize(err).Code)

		// a ticket from the same day stays valid later that day
		err = newValidator(nil, now.Add(12*time.Hour)).Validate(encode(t, fresh), "demo-1", wallet)
		assert.NoError(t, err)
	})

	t.Run("small clock skew tolerated", func(t *testing.T) {
		ahead := Generate(types.QREventCheckIn, wallet, "demo-1", "", now.Add(time.Minute))
		assert.NoError(t, newValidator(nil, now).Validate(encode(t, ahead), "demo-1", wallet))
	})

	t.Run("wrong event", func(t *testing.T) {
		err := newValidator(signer, now).Validate(encode(t, signer.Sign(fresh)), "demo-2", wallet)
		assert.Error(t, err)
	})

	t.Run("wrong wallet", func(t *testing.T) {
		err := newValidator(signer, now).Validate(encode(t, signer.Sign(fresh)), "demo-1", "0x0000000000000000000000000000000000000001")
		assert.Error(t, err)
	})

	t.Run("wrong type", func(t *testing.T) {
		p := signer.Sign(Generate(types.QRStampClaim, wallet, "demo-1", "stamp-1", now))
		assert.Error(t, newValidator(signer, now).Validate(encode(t, p), "demo-1", wallet))
	})

	t.Run("rsvp token without signing", func(t *testing.T) {
		token := models.RSVPToken("demo-1", wallet, now)
		assert.NoError(t, newValidator(nil, now).Validate(token, "demo-1", wallet))
		assert.Error(t, newValidator(nil, now).Validate(token, "demo-2", wallet))
		assert.Error(t, newValidator(signer, now).Validate(token, "demo-1", wallet))
	})

	t.Run("garbage", func(t *testing.T) {
		assert.Error(t, newValidator(nil, now).Validate("hello", "demo-1", wallet))
	})
}
