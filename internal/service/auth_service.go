package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hellhack-ui/HoloPass/internal/auth"
	apperrors "github.com/hellhack-ui/HoloPass/internal/errors"
	"github.com/hellhack-ui/HoloPass/internal/logging"
	"github.com/hellhack-ui/HoloPass/internal/models"
)

// AuthOptions describe the sign-in messages this server issues
type AuthOptions struct {
	Domain   string
	URI      string
	ChainID  int64
	NonceTTL time.Duration
}

// Challenge is a sign-in message waiting for a wallet signature
type Challenge struct {
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Session is the result of a successful sign-in
type Session struct {
	Token     string              `json:"token"`
	ExpiresAt time.Time           `json:"expiresAt"`
	Profile   *models.UserProfile `json:"profile"`
}

// AuthService implements wallet sign-in
type AuthService struct {
	nonces   auth.NonceStore
	issuer   *auth.TokenIssuer
	profiles ProfileRepository
	opts     AuthOptions
	now      func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(nonces auth.NonceStore, issuer *auth.TokenIssuer, profiles ProfileRepository, opts AuthOptions) *AuthService {
	if opts.NonceTTL <= 0 {
		opts.NonceTTL = 10 * time.Minute
	}
	if opts.ChainID == 0 {
		opts.ChainID = 1
	}
	return &AuthService{
		nonces:   nonces,
		issuer:   issuer,
		profiles: profiles,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Challenge issues a single-use nonce and the message address must sign
func (s *AuthService) Challenge(ctx context.Context, address string, chainID int64) (*Challenge, error) {
	address, err := requireAddress("address", address, "Address is required")
	if err != nil {
		return nil, err
	}
	if chainID == 0 {
		chainID = s.opts.ChainID
	}

	nonce, err := auth.GenerateNonce()
	if err != nil {
		return nil, apperrors.NewInternalError("Failed to generate nonce", err)
	}
	now := s.now()
	if err := s.nonces.Save(ctx, nonce, address, s.opts.NonceTTL); err != nil {
		return nil, apperrors.NewCacheError("save nonce", err)
	}

	msg := auth.SIWEMessage{
		Domain:   s.opts.Domain,
		Address:  common.HexToAddress(address).Hex(),
		URI:      s.opts.URI,
		ChainID:  chainID,
		Nonce:    nonce,
		IssuedAt: now,
	}
	return &Challenge{
		Nonce:     nonce,
		Message:   msg.String(),
		ExpiresAt: now.Add(s.opts.NonceTTL),
	}, nil
}

// Verify checks a signed challenge and opens a session for its signer
func (s *AuthService) Verify(ctx context.Context, address, message, signature string) (*Session, error) {
	if strings.TrimSpace(message) == "" || strings.TrimSpace(signature) == "" {
		return nil, apperrors.NewMissingFieldError("signature", "Address, message and signature are required")
	}
	address, err := requireAddress("address", address, "Address, message and signature are required")
	if err != nil {
		return nil, err
	}

	msg, err := auth.ParseSIWEMessage(message)
	if err != nil {
		return nil, apperrors.NewInvalidParameterError("message", err.Error())
	}
	if !strings.EqualFold(msg.Address, address) {
		return nil, apperrors.NewSignInError(apperrors.CodeInvalidSignature, "Message was issued for a different address")
	}
	if s.opts.Domain != "" && msg.Domain != s.opts.Domain {
		return nil, apperrors.NewSignInError(apperrors.CodeInvalidSignature, "Message was issued for a different domain")
	}
	if err := auth.VerifySignature(address, message, signature); err != nil {
		logging.FromContext(ctx).WithError(err).WithField("address", address).Warn("Rejected sign-in signature")
		return nil, apperrors.NewSignInError(apperrors.CodeInvalidSignature, "Invalid signature")
	}

	owner, err := s.nonces.Consume(ctx, msg.Nonce)
	if err != nil {
		if errors.Is(err, auth.ErrNonceNotFound) {
			return nil, apperrors.NewSignInError(apperrors.CodeNonceInvalid, "Nonce is invalid or expired")
		}
		return nil, apperrors.NewCacheError("consume nonce", err)
	}
	if owner != address {
		return nil, apperrors.NewSignInError(apperrors.CodeNonceInvalid, "Nonce was issued for a different address")
	}

	profile, err := s.profiles.EnsureProfile(ctx, address, s.now())
	if err != nil {
		return nil, apperrors.NewDatabaseError("ensure profile", err)
	}
	token, expiresAt, err := s.issuer.Issue(address, msg.ChainID)
	if err != nil {
		return nil, apperrors.NewInternalError("Failed to issue session", err)
	}

	logging.FromContext(ctx).WithField("address", address).Info("Wallet signed in")
	return &Session{Token: token, ExpiresAt: expiresAt, Profile: profile}, nil
}

// Authenticate returns the claims of a session token
func (s *AuthService) Authenticate(token string) (*auth.Claims, error) {
	claims, err := s.issuer.Parse(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, apperrors.NewUnauthorizedError("Session expired")
		}
		return nil, apperrors.NewUnauthorizedError("Invalid session token")
	}
	return claims, nil
}
