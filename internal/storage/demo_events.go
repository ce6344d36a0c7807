package storage

import (
	"time"

	"github.com/hellhack-ui/HoloPass/internal/models"
	"github.com/hellhack-ui/HoloPass/internal/types"
)

// DemoEvents returns the static catalog served when no database is configured.
// Start dates are relative to now so the catalog never goes stale.
func DemoEvents(now time.Time) []*models.Event {
	day := 24 * time.Hour
	now = now.UTC()

	events := []*models.Event{
		{
			ID:          "demo-1",
			Title:       "Web3 Developer Meetup",
			Description: "Join us for an evening of Web3 development discussions, networking, and demos. Perfect for developers interested in blockchain technology.",
			Location: models.Location{
				Name:        "Tech Hub Downtown",
				Address:     "123 Innovation St, San Francisco, CA",
				Coordinates: &models.Coordinates{Lat: 37.7749, Lng: -122.4194},
			},
			StartDate:     now.Add(7 * day),
			EndDate:       now.Add(7*day + 3*time.Hour),
			Category:      types.CategoryConference,
			Capacity:      100,
			AttendeeCount: 45,
			Price:         models.Price{Amount: 0, Currency: "USD", Free: true},
			Organizer: models.Organizer{
				Address: "0x1234567890123456789012345678901234567890",
				Name:    "Web3 SF",
				Avatar:  models.DefaultAvatar,
			},
			Rewards: models.Rewards{Stamp: models.StampReward{
				ID:          "stamp-web3-meetup",
				Name:        "Web3 Pioneer",
				Description: "Attended Web3 Developer Meetup",
				Rarity:      types.RarityCommon,
				XP:          75,
			}},
			Tags: []string{"web3", "blockchain", "developer", "networking"},
		},
		{
			ID:          "demo-2",
			Title:       "NFT Art Gallery Opening",
			Description: "Experience the future of digital art at our exclusive NFT gallery opening. Meet artists, collectors, and fellow enthusiasts.",
			Location: models.Location{
				Name:        "Digital Arts Center",
				Address:     "456 Creative Ave, New York, NY",
				Coordinates: &models.Coordinates{Lat: 40.7128, Lng: -74.006},
			},
			StartDate:     now.Add(14 * day),
			EndDate:       now.Add(14*day + 4*time.Hour),
			Category:      types.CategoryArt,
			Capacity:      150,
			AttendeeCount: 89,
			Price:         models.Price{Amount: 25, Currency: "USD", Free: false},
			Organizer: models.Organizer{
				Address: "0x9876543210987654321098765432109876543210",
				Name:    "NFT Collective",
				Avatar:  models.DefaultAvatar,
			},
			Rewards: models.Rewards{Stamp: models.StampReward{
				ID:          "stamp-nft-gallery",
				Name:        "Art Connoisseur",
				Description: "Attended NFT Art Gallery Opening",
				Rarity:      types.RarityRare,
				XP:          100,
			}},
			Tags: []string{"nft", "art", "gallery", "digital"},
		},
		{
			ID:          "demo-3",
			Title:       "DeFi Summit 2024",
			Description: "The premier conference for decentralized finance. Learn from industry leaders, discover new protocols, and network with DeFi enthusiasts.",
			Location: models.Location{
				Name:        "Convention Center",
				Address:     "789 Conference Blvd, Austin, TX",
				Coordinates: &models.Coordinates{Lat: 30.2672, Lng: -97.7431},
			},
			StartDate:     now.Add(21 * day),
			EndDate:       now.Add(23 * day),
			Category:      types.CategoryConference,
			Capacity:      500,
			AttendeeCount: 234,
			Price:         models.Price{Amount: 299, Currency: "USD", Free: false},
			Organizer: models.Organizer{
				Address: "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd",
				Name:    "DeFi Foundation",
				Avatar:  models.DefaultAvatar,
			},
			Rewards: models.Rewards{Stamp: models.StampReward{
				ID:          "stamp-defi-summit",
				Name:        "DeFi Expert",
				Description: "Attended DeFi Summit 2024",
				Rarity:      types.RarityLegendary,
				XP:          200,
			}},
			Tags: []string{"defi", "finance", "summit", "conference"},
		},
	}

	for _, e := range events {
		e.Source = types.SourceDemo
		e.CreatedAt = now
		e.UpdatedAt = now
		e.ApplyDefaults()
	}
	return events
}
