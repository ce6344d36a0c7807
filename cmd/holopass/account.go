package main

import (
	"crypto/ecdsa"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/hellhack-ui/HoloPass/internal/models"
)

// signMessage produces a personal_sign signature with v in {27, 28}
func signMessage(key *ecdsa.PrivateKey, message string) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		return "", err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

func loginCmd(c *cli) *cobra.Command {
	var chainID int64
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with a wallet key and print a session token",
		Long: `Requests a sign-in message, signs it locally with the key in
HOLOPASS_PRIVATE_KEY (or --private-key) and exchanges it for a session token.
The key never leaves this machine.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hexKey := strings.TrimPrefix(c.v.GetString("private-key"), "0x")
			if hexKey == "" {
				return fmt.Errorf("a private key is required")
			}
			key, err := crypto.HexToECDSA(hexKey)
			if err != nil {
				return fmt.Errorf("invalid private key: %w", err)
			}
			address := crypto.PubkeyToAddress(key.PublicKey).Hex()

			cl := c.client()
			challenge, err := cl.Nonce(cmd.Context(), address, chainID)
			if err != nil {
				return err
			}
			signature, err := signMessage(key, challenge.Message)
			if err != nil {
				return fmt.Errorf("failed to sign: %w", err)
			}
			session, err := cl.Verify(cmd.Context(), address, challenge.Message, signature)
			if err != nil {
				return err
			}
			return c.print(session, func(w io.Writer) {
				fmt.Fprintf(w, "signed in as %s until %s\n", address, session.ExpiresAt.Format("2006-01-02 15:04"))
				fmt.Fprintf(w, "export HOLOPASS_TOKEN=%s\n", session.Token)
			})
		},
	}
	cmd.Flags().String("private-key", "", "Hex encoded wallet key")
	cmd.Flags().Int64Var(&chainID, "chain-id", 1, "Chain id for the sign-in message")
	_ = c.v.BindPFlag("private-key", cmd.Flags().Lookup("private-key"))
	return cmd
}

func printProfile(w io.Writer, p *models.UserProfile) {
	name := p.Address
	if p.ENSName != nil {
		name = *p.ENSName + " (" + p.Address + ")"
	}
	fmt.Fprintf(w, "%s\nlevel %d, %d XP, %d stamps\n", name, p.Level, p.XP, p.StampsCount)
}

func profileCmd(c *cli) *cobra.Command {
	var showStamps bool
	cmd := &cobra.Command{
		Use:   "profile [address]",
		Short: "Show a wallet's profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl := c.client()
			profile, err := cl.Profile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !showStamps {
				return c.print(profile, func(w io.Writer) { printProfile(w, profile) })
			}

			stamps, err := cl.ProfileStamps(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := map[string]interface{}{"profile": profile, "stamps": stamps}
			return c.print(out, func(w io.Writer) {
				printProfile(w, profile)
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "\nSTAMP\tRARITY\tXP\tEVENT\tON CHAIN")
				for _, s := range stamps {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%t\n", s.Name, s.Rarity, s.XP, s.EventID, s.TxHash != nil)
				}
				tw.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&showStamps, "stamps", false, "Include stamps")
	return cmd
}

func passportCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passport [address]",
		Short: "Show a wallet's HoloPass NFT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.client().Passport(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.print(p, func(w io.Writer) {
				if !p.HasNFT {
					fmt.Fprintf(w, "%s has no passport on chain %d\n", p.Address, p.ChainID)
					return
				}
				fmt.Fprintf(w, "passport #%s on chain %d, %d stamps on chain\n", deref(p.TokenID), p.ChainID, len(p.OnchainStamp))
				if p.Metadata != nil {
					fmt.Fprintf(w, "%s: %s\n", p.Metadata.Name, p.Metadata.Description)
				}
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "mint [address]",
		Short: "Queue a passport mint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.client().MintPassport(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.print(m, func(w io.Writer) { fmt.Fprintf(w, "mint %s for %s\n", m.Status, m.Address) })
		},
	})
	return cmd
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
