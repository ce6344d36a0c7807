package models

import "github.com/hellhack-ui/HoloPass/internal/types"

// NFTAttribute is an ERC-721 metadata attribute
type NFTAttribute struct {
	TraitType string      `json:"trait_type"`
	Value     interface{} `json:"value"`
}

// NFTStamp is a stamp entry embedded in passport metadata
type NFTStamp struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Image       string       `json:"image"`
	Rarity      types.Rarity `json:"rarity"`
	Timestamp   int64        `json:"timestamp"`
}

// NFTMetadata is the JSON document behind a HoloPass token URI
type NFTMetadata struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Image       string         `json:"image"`
	Attributes  []NFTAttribute `json:"attributes"`
	Stamps      []NFTStamp     `json:"stamps"`
}

// Passport is the chain view of a wallet's HoloPass
type Passport struct {
	Address      string       `json:"address"`
	ChainID      int64        `json:"chainId"`
	HasNFT       bool         `json:"hasNFT"`
	Balance      string       `json:"balance"`
	TokenID      *string      `json:"tokenId,omitempty"`
	TokenURI     string       `json:"tokenUri,omitempty"`
	OnchainStamp []string     `json:"onchainStamps,omitempty"`
	Metadata     *NFTMetadata `json:"metadata,omitempty"`
	Fallback     bool         `json:"fallback"`
	Profile      *UserProfile `json:"profile,omitempty"`
}
