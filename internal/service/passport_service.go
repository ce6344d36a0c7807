package service

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hellhack-ui/HoloPass/internal/chain"
	apperrors "github.com/hellhack-ui/HoloPass/internal/errors"
	"github.com/hellhack-ui/HoloPass/internal/logging"
	"github.com/hellhack-ui/HoloPass/internal/models"
	"github.com/hellhack-ui/HoloPass/internal/storage"
	"github.com/hellhack-ui/HoloPass/internal/types"
)

// MintRequest acknowledges a queued passport mint
type MintRequest struct {
	Address string `json:"address"`
	ChainID int64  `json:"chainId"`
	Status  string `json:"status"`
}

// PassportService reads HoloPass NFTs and queues mints
type PassportService struct {
	reader   PassportReader
	metadata MetadataSource
	jobs     JobQueue
	profiles ProfileRepository
	chainID  int64
	canMint  bool
	now      func() time.Time
}

// NewPassportService creates a new passport service. A nil reader means no RPC
// endpoint is configured.
func NewPassportService(reader PassportReader, metadata MetadataSource, jobs JobQueue, profiles ProfileRepository, chainID int64, canMint bool) *PassportService {
	return &PassportService{
		reader:   reader,
		metadata: metadata,
		jobs:     jobs,
		profiles: profiles,
		chainID:  chainID,
		canMint:  canMint,
		now:      time.Now,
	}
}

// Get returns the passport of address. Metadata that cannot be loaded is
// replaced by the fallback passport.
func (s *PassportService) Get(ctx context.Context, address string) (*models.Passport, error) {
	address, err := requireAddress("address", address, "Address is required")
	if err != nil {
		return nil, err
	}
	logger := logging.FromContext(ctx).WithField("address", address)

	passport := &models.Passport{Address: address, ChainID: s.chainID, Balance: "0"}
	if profile, err := s.profiles.GetProfile(ctx, address); err == nil {
		passport.Profile = profile
	} else if !errors.Is(err, storage.ErrNotFound) {
		logger.WithError(err).Warn("Failed to load profile for passport")
	}

	if s.reader == nil {
		return passport, nil
	}

	owner := common.HexToAddress(address)
	balance, err := s.reader.BalanceOf(ctx, owner)
	if err != nil {
		return nil, rpcError(err)
	}
	passport.Balance = balance.String()
	if balance.Sign() == 0 {
		return passport, nil
	}
	passport.HasNFT = true

	tokenID, err := s.reader.TokenOfOwnerByIndex(ctx, owner, big.NewInt(0))
	if err != nil {
		return nil, rpcError(err)
	}
	id := tokenID.String()
	passport.TokenID = &id

	stamps, err := s.reader.GetStamps(ctx, tokenID)
	if err != nil {
		logger.WithError(err).Warn("Failed to read on-chain stamps")
	}
	for _, st := range stamps {
		passport.OnchainStamp = append(passport.OnchainStamp, st.String())
	}

	uri, err := s.reader.TokenURI(ctx, tokenID)
	if err != nil {
		logger.WithError(err).Warn("Failed to read token URI, serving fallback metadata")
		s.useFallback(passport)
		return passport, nil
	}
	passport.TokenURI = uri

	if s.metadata == nil {
		s.useFallback(passport)
		return passport, nil
	}
	meta, err := s.metadata.Fetch(ctx, s.chainID, id, uri)
	if err != nil {
		logger.WithError(err).Warn("Failed to fetch token metadata, serving fallback metadata")
		s.useFallback(passport)
		return passport, nil
	}
	passport.Metadata = meta
	return passport, nil
}

func (s *PassportService) useFallback(p *models.Passport) {
	p.Metadata = chain.FallbackMetadata(len(p.OnchainStamp), s.now())
	p.Fallback = true
}

// Mint queues a passport mint for address
func (s *PassportService) Mint(ctx context.Context, address, actor string) (*MintRequest, error) {
	address, err := requireAddress("address", address, "Address is required")
	if err != nil {
		return nil, err
	}
	if err := checkActor(actor, address); err != nil {
		return nil, err
	}
	if !s.canMint || s.reader == nil {
		return nil, apperrors.NewServiceUnavailableError("passport minting")
	}

	balance, err := s.reader.BalanceOf(ctx, common.HexToAddress(address))
	if err != nil {
		return nil, rpcError(err)
	}
	if balance.Sign() > 0 {
		return nil, apperrors.NewRuleError(apperrors.CodePassportExists, "Passport already minted")
	}

	if err := s.jobs.EnqueueJob(ctx, types.JobMintPassport, address, nil); err != nil {
		return nil, apperrors.NewDatabaseError("enqueue mint", err)
	}
	logging.FromContext(ctx).WithField("address", address).Info("Queued passport mint")
	return &MintRequest{Address: address, ChainID: s.chainID, Status: "queued"}, nil
}

// rpcError keeps the category assigned by the chain layer and wraps anything else
func rpcError(err error) error {
	var catErr *apperrors.CategorizedError
	if errors.As(err, &catErr) {
		return err
	}
	return apperrors.NewProviderError("rpc", err)
}
