package chain

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/hellhack-ui/HoloPass/internal/errors"
	"github.com/hellhack-ui/HoloPass/internal/logging"
	"github.com/hellhack-ui/HoloPass/internal/models"
	"github.com/hellhack-ui/HoloPass/internal/retry"
	"github.com/hellhack-ui/HoloPass/internal/storage"
	"github.com/hellhack-ui/HoloPass/internal/types"
)

const maxMetadataBytes = 1 << 20

// MetadataFetcher loads token metadata documents from HTTP, IPFS or data URIs
type MetadataFetcher struct {
	gateway string
	client  *http.Client
	cache   *storage.CacheService
	ttl     time.Duration
	retry   *retry.RetryConfig
}

// NewMetadataFetcher creates a fetcher. cache may be nil.
func NewMetadataFetcher(gateway string, cache *storage.CacheService, ttl time.Duration) *MetadataFetcher {
	if gateway == "" {
		gateway = "https://ipfs.io/ipfs/"
	}
	if !strings.HasSuffix(gateway, "/") {
		gateway += "/"
	}
	cfg := retry.DefaultRetryConfig()
	cfg.MaxAttempts = 3
	return &MetadataFetcher{
		gateway: gateway,
		client:  &http.Client{Timeout: 10 * time.Second},
		cache:   cache,
		ttl:     ttl,
		retry:   cfg,
	}
}

// ResolveURI rewrites ipfs:// URIs to the configured gateway
func (f *MetadataFetcher) ResolveURI(uri string) string {
	if rest, ok := strings.CutPrefix(uri, "ipfs://"); ok {
		return f.gateway + strings.TrimPrefix(rest, "ipfs/")
	}
	return uri
}

// Fetch returns the metadata behind uri, using the cache when configured
func (f *MetadataFetcher) Fetch(ctx context.Context, chainID int64, tokenID, uri string) (*models.NFTMetadata, error) {
	key := storage.MetadataKey(chainID, tokenID)
	var cached models.NFTMetadata
	if hit, err := f.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}

	var body []byte
	var err error
	if strings.HasPrefix(uri, "data:") {
		body, err = decodeDataURI(uri)
	} else {
		body, err = f.get(ctx, f.ResolveURI(uri))
	}
	if err != nil {
		return nil, err
	}

	var meta models.NFTMetadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}

	if err := f.cache.SetWithTTL(ctx, key, &meta, f.ttl); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Failed to cache token metadata")
	}
	return &meta, nil
}

func (f *MetadataFetcher) get(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := retry.WithRetry(ctx, f.retry, func(ctx context.Context, attempt int) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return apperrors.NewInvalidParameterError("tokenURI", err.Error())
		}
		req.Header.Set("Accept", "application/json")

		resp, err := f.client.Do(req)
		if err != nil {
			return apperrors.NewProviderError("metadata", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return apperrors.NewProviderRateLimitError("metadata")
		case resp.StatusCode >= 500:
			return apperrors.NewProviderError("metadata", fmt.Errorf("status %d", resp.StatusCode))
		case resp.StatusCode != http.StatusOK:
			return apperrors.NewNotFoundError("Metadata", url)
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, maxMetadataBytes))
		if err != nil {
			return apperrors.NewProviderError("metadata", err)
		}
		return nil
	})
	return body, err
}

func decodeDataURI(uri string) ([]byte, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("malformed data uri")
	}
	if strings.HasSuffix(header, ";base64") {
		return base64.StdEncoding.DecodeString(payload)
	}
	return []byte(payload), nil
}

// FallbackMetadata is served when a token's metadata cannot be loaded
func FallbackMetadata(onchainStamps int, now time.Time) *models.NFTMetadata {
	day := 24 * time.Hour
	return &models.NFTMetadata{
		Name:        "HoloPass #1337",
		Description: "Your multichain digital identity passport",
		Image:       models.DefaultOrganizerImage,
		Attributes: []models.NFTAttribute{
			{TraitType: "Level", Value: 3},
			{TraitType: "XP", Value: 750},
			{TraitType: "Stamps", Value: onchainStamps},
		},
		Stamps: []models.NFTStamp{
			{
				ID:          "1",
				Name:        "ETH Denver 2024",
				Description: "Attended the largest Ethereum event",
				Image:       models.DefaultStampImage,
				Rarity:      types.RarityRare,
				Timestamp:   now.Add(-day).UnixMilli(),
			},
			{
				ID:          "2",
				Name:        "Web3 Meetup NYC",
				Description: "Participated in Web3 networking event",
				Image:       models.DefaultStampImage,
				Rarity:      types.RarityCommon,
				Timestamp:   now.Add(-2 * day).UnixMilli(),
			},
		},
	}
}
