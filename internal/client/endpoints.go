package client

import (
	"context"
	"fmt"
	"net/url"
	"time"

	apperrors "github.com/hellhack-ui/HoloPass/internal/errors"
	"github.com/hellhack-ui/HoloPass/internal/models"
	"github.com/hellhack-ui/HoloPass/internal/qr"
	"github.com/hellhack-ui/HoloPass/internal/types"
)

// Health is the /health response
type Health struct {
	Status         string `json:"status"`
	Service        string `json:"service"`
	Mode           string `json:"mode"`
	Web3Configured bool   `json:"web3Configured"`
}

// QRCode is a check-in QR code for one RSVP
type QRCode struct {
	Payload    qr.Payload `json:"payload"`
	QRCodeData string     `json:"qrCodeData"`
	Image      string     `json:"image"`
}

// Challenge is a sign-in message to be signed by the wallet
type Challenge struct {
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Session is a verified sign-in
type Session struct {
	Token     string              `json:"token"`
	ExpiresAt time.Time           `json:"expiresAt"`
	Profile   *models.UserProfile `json:"profile"`
}

// MintStatus is the result of a mint request
type MintStatus struct {
	Address string `json:"address"`
	ChainID int64  `json:"chainId"`
	Status  string `json:"status"`
}

func eventPath(id string, rest ...string) string {
	p := "/api/events/" + url.PathEscape(id)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

func profilePath(address string, rest ...string) string {
	p := "/api/profiles/" + url.PathEscape(address)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

// Health checks the server
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.get(ctx, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListEvents lists events matching filter
func (c *Client) ListEvents(ctx context.Context, filter models.EventFilter) ([]*models.Event, error) {
	q := url.Values{}
	if filter.Category != "" {
		q.Set("category", filter.Category)
	}
	if filter.Search != "" {
		q.Set("search", filter.Search)
	}
	if filter.Location != "" {
		q.Set("location", filter.Location)
	}
	var out struct {
		Events []*models.Event `json:"events"`
	}
	if err := c.get(ctx, "/api/events", q, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

// GetEvent fetches one event
func (c *Client) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var out struct {
		Event *models.Event `json:"event"`
	}
	if err := c.get(ctx, eventPath(id), nil, &out); err != nil {
		return nil, err
	}
	return out.Event, nil
}

type eventBody struct {
	OrganizerAddress string `json:"organizerAddress"`
	models.EventInput
}

// CreateEvent creates an event organized by organizer
func (c *Client) CreateEvent(ctx context.Context, organizer string, in models.EventInput) (*models.Event, error) {
	var out struct {
		Event *models.Event `json:"event"`
	}
	if err := c.do(ctx, "POST", "/api/events", nil, eventBody{organizer, in}, &out); err != nil {
		return nil, err
	}
	return out.Event, nil
}

// UpdateEvent applies the set fields of in
func (c *Client) UpdateEvent(ctx context.Context, id, organizer string, in models.EventInput) (*models.Event, error) {
	var out struct {
		Event *models.Event `json:"event"`
	}
	if err := c.do(ctx, "PUT", eventPath(id), nil, eventBody{organizer, in}, &out); err != nil {
		return nil, err
	}
	return out.Event, nil
}

// DeleteEvent deletes an event owned by organizer
func (c *Client) DeleteEvent(ctx context.Context, id, organizer string) error {
	return c.do(ctx, "DELETE", eventPath(id), url.Values{"organizer": {organizer}}, nil, nil)
}

// EventStats fetches attendance stats
func (c *Client) EventStats(ctx context.Context, id string) (*models.AttendanceStats, error) {
	var out struct {
		Stats *models.AttendanceStats `json:"stats"`
	}
	if err := c.get(ctx, eventPath(id, "stats"), nil, &out); err != nil {
		return nil, err
	}
	return out.Stats, nil
}

// RSVP reserves a place for user
func (c *Client) RSVP(ctx context.Context, eventID, user string) (*models.RSVP, error) {
	var out struct {
		RSVP *models.RSVP `json:"rsvp"`
	}
	body := map[string]string{"userAddress": user}
	if err := c.do(ctx, "POST", eventPath(eventID, "rsvp"), nil, body, &out); err != nil {
		return nil, err
	}
	return out.RSVP, nil
}

// CancelRSVP cancels user's RSVP
func (c *Client) CancelRSVP(ctx context.Context, eventID, user string) error {
	return c.do(ctx, "DELETE", eventPath(eventID, "rsvp"), url.Values{"user": {user}}, nil, nil)
}

// RSVPQRCode fetches a fresh check-in QR code for user's RSVP
func (c *Client) RSVPQRCode(ctx context.Context, eventID, user string) (*QRCode, error) {
	var out QRCode
	if err := c.get(ctx, eventPath(eventID, "rsvp", "qr"), url.Values{"user": {user}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckQRData rejects a scanned payload that is expired, stamped in the future,
// not a check-in code or for another event. Plain RSVP tokens pass through for the server to judge.
func (c *Client) CheckQRData(qrData, eventID string) error {
	p, err := qr.Decode(qrData)
	if err != nil {
		return nil
	}
	now := c.now()
	if p.Expired(now, qr.DefaultTTL) {
		return apperrors.ErrQRExpired
	}
	if p.FromFuture(now) {
		return apperrors.NewQRInvalidError("timestamp is in the future")
	}
	if p.Type != types.QREventCheckIn {
		return apperrors.NewQRInvalidError(fmt.Sprintf("expected %s payload, got %s", types.QREventCheckIn, p.Type))
	}
	if p.EventID != eventID {
		return apperrors.NewQRInvalidError("QR code is for a different event")
	}
	return nil
}

// CheckIn submits a scanned QR code. Expired payloads fail locally.
func (c *Client) CheckIn(ctx context.Context, eventID, user, qrData string) (*models.CheckInResult, error) {
	if err := c.CheckQRData(qrData, eventID); err != nil {
		return nil, err
	}
	var out models.CheckInResult
	body := map[string]string{"userAddress": user, "qrCodeData": qrData}
	if err := c.do(ctx, "POST", eventPath(eventID, "checkin"), nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Nonce requests a sign-in challenge for address
func (c *Client) Nonce(ctx context.Context, address string, chainID int64) (*Challenge, error) {
	var out Challenge
	body := map[string]interface{}{"address": address, "chainId": chainID}
	if err := c.do(ctx, "POST", "/api/auth/nonce", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Verify exchanges a signed challenge for a session and keeps its token
func (c *Client) Verify(ctx context.Context, address, message, signature string) (*Session, error) {
	var out Session
	body := map[string]string{"address": address, "message": message, "signature": signature}
	if err := c.do(ctx, "POST", "/api/auth/verify", nil, body, &out); err != nil {
		return nil, err
	}
	c.token = out.Token
	return &out, nil
}

// Profile fetches a profile
func (c *Client) Profile(ctx context.Context, address string) (*models.UserProfile, error) {
	var out struct {
		Profile *models.UserProfile `json:"profile"`
	}
	if err := c.get(ctx, profilePath(address), nil, &out); err != nil {
		return nil, err
	}
	return out.Profile, nil
}

// UpdateProfile updates the signed-in wallet's profile
func (c *Client) UpdateProfile(ctx context.Context, address string, update models.ProfileUpdate) (*models.UserProfile, error) {
	var out struct {
		Profile *models.UserProfile `json:"profile"`
	}
	if err := c.do(ctx, "PUT", profilePath(address), nil, update, &out); err != nil {
		return nil, err
	}
	return out.Profile, nil
}

// ProfileRSVPs lists a wallet's RSVPs
func (c *Client) ProfileRSVPs(ctx context.Context, address string) ([]*models.RSVP, error) {
	var out struct {
		RSVPs []*models.RSVP `json:"rsvps"`
	}
	if err := c.get(ctx, profilePath(address, "rsvps"), nil, &out); err != nil {
		return nil, err
	}
	return out.RSVPs, nil
}

// ProfileCheckIns lists a wallet's check-ins
func (c *Client) ProfileCheckIns(ctx context.Context, address string) ([]*models.CheckIn, error) {
	var out struct {
		CheckIns []*models.CheckIn `json:"checkIns"`
	}
	if err := c.get(ctx, profilePath(address, "checkins"), nil, &out); err != nil {
		return nil, err
	}
	return out.CheckIns, nil
}

// ProfileStamps lists a wallet's stamps
func (c *Client) ProfileStamps(ctx context.Context, address string) ([]*models.Stamp, error) {
	var out struct {
		Stamps []*models.Stamp `json:"stamps"`
	}
	if err := c.get(ctx, profilePath(address, "stamps"), nil, &out); err != nil {
		return nil, err
	}
	return out.Stamps, nil
}

// Passport reads a wallet's HoloPass NFT
func (c *Client) Passport(ctx context.Context, address string) (*models.Passport, error) {
	var out struct {
		Passport *models.Passport `json:"passport"`
	}
	if err := c.get(ctx, "/api/passport/"+url.PathEscape(address), nil, &out); err != nil {
		return nil, err
	}
	return out.Passport, nil
}

// MintPassport queues a passport mint
func (c *Client) MintPassport(ctx context.Context, address string) (*MintStatus, error) {
	var out struct {
		Mint *MintStatus `json:"mint"`
	}
	if err := c.do(ctx, "POST", "/api/passport/"+url.PathEscape(address)+"/mint", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Mint, nil
}
