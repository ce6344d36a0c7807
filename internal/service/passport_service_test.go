package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/hellhack-ui/HoloPass/internal/errors"
	"github.com/hellhack-ui/HoloPass/internal/models"
	"github.com/hellhack-ui/HoloPass/internal/storage"
	"github.com/hellhack-ui/HoloPass/internal/types"
)

func TestPassportService_NoRPCEndpoint(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewPassportService(nil, nil, store, store, 1, false)

	passport, err := svc.Get(context.Background(), bob)
	require.NoError(t, err)
	assert.False(t, passport.HasNFT)
	assert.Equal(t, "0", passport.Balance)
	assert.Nil(t, passport.Metadata)

	_, err = svc.Mint(context.Background(), bob, "")
	assert.Equal(t, 503, apperrors.GetHTTPStatusCode(err))
}

func TestPassportService_ReadsToken(t *testing.T) {
	store := storage.NewMemoryStore()
	_, err := store.EnsureProfile(context.Background(), bob, timeNow())
	require.NoError(t, err)

	reader := &mockReader{balance: 1, tokenID: 42, uri: "ipfs://bafy/42.json", stamps: []int64{7, 9}}
	metadata := &mockMetadata{meta: &models.NFTMetadata{Name: "HoloPass #42"}}
	svc := NewPassportService(reader, metadata, store, store, 137, true)

	passport, err := svc.Get(context.Background(), bob)
	require.NoError(t, err)

	assert.True(t, passport.HasNFT)
	assert.Equal(t, "1", passport.Balance)
	require.NotNil(t, passport.TokenID)
	assert.Equal(t, "42", *passport.TokenID)
	assert.Equal(t, []string{"7", "9"}, passport.OnchainStamp)
	assert.Equal(t, "HoloPass #42", passport.Metadata.Name)
	assert.False(t, passport.Fallback)
	assert.Equal(t, []string{"ipfs://bafy/42.json"}, metadata.uris)
	require.NotNil(t, passport.Profile)
	assert.Equal(t, bob, passport.Profile.Address)
}

func TestPassportService_FallbackOnMetadataFailure(t *testing.T) {
	store := storage.NewMemoryStore()
	reader := &mockReader{balance: 1, tokenID: 1, uri: "ipfs://gone", stamps: []int64{3}}
	svc := NewPassportService(reader, &mockMetadata{err: errUnavailable}, store, store, 1, true)

	passport, err := svc.Get(context.Background(), bob)
	require.NoError(t, err)

	assert.True(t, passport.Fallback)
	assert.Equal(t, "HoloPass #1337", passport.Metadata.Name)
	assert.Len(t, passport.Metadata.Stamps, 2)
}

func TestPassportService_FallbackOnTokenURIFailure(t *testing.T) {
	store := storage.NewMemoryStore()
	reader := &mockReader{balance: 1, uriErr: errUnavailable, stampErr: errUnavailable}
	svc := NewPassportService(reader, &mockMetadata{}, store, store, 1, true)

	passport, err := svc.Get(context.Background(), bob)
	require.NoError(t, err)
	assert.True(t, passport.Fallback)
	assert.Empty(t, passport.OnchainStamp)
}

func TestPassportService_RPCFailure(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewPassportService(&mockReader{err: errUnavailable}, nil, store, store, 1, true)

	_, err := svc.Get(context.Background(), bob)
	assert.Equal(t, 502, apperrors.GetHTTPStatusCode(err))
}

func TestPassportService_RPCTimeoutKeepsCategory(t *testing.T) {
	store := storage.NewMemoryStore()
	timeout := apperrors.NewProviderTimeoutError("rpc:balanceOf", context.DeadlineExceeded)
	svc := NewPassportService(&mockReader{err: timeout}, nil, store, store, 1, true)

	_, err := svc.Get(context.Background(), bob)
	assert.Equal(t, 504, apperrors.GetHTTPStatusCode(err))
	assert.True(t, apperrors.IsRetryable(err))
}

func TestPassportService_Mint(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	svc := NewPassportService(&mockReader{balance: 0}, nil, store, store, 137, true)
	req, err := svc.Mint(ctx, bob, bob)
	require.NoError(t, err)
	assert.Equal(t, "queued", req.Status)

	jobs := store.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, types.JobMintPassport, jobs[0].Action)
	assert.Equal(t, bob, jobs[0].UserAddress)

	_, err = svc.Mint(ctx, bob, alice)
	assert.Equal(t, 403, apperrors.GetHTTPStatusCode(err))

	minted := NewPassportService(&mockReader{balance: 1}, nil, store, store, 137, true)
	_, err = minted.Mint(ctx, bob, "")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodePassportExists, apperrors.Categorize(err).Code)
}
