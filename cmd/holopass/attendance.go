package main

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func rsvpCmd(c *cli) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "rsvp",
		Short: "Reserve, cancel or show the QR code for an RSVP",
	}
	cmd.PersistentFlags().StringVarP(&user, "user", "u", "", "Attendee wallet address")
	_ = cmd.MarkPersistentFlagRequired("user")

	cmd.AddCommand(&cobra.Command{
		Use:   "create [event-id]",
		Short: "RSVP to an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rsvp, err := c.client().RSVP(cmd.Context(), args[0], user)
			if err != nil {
				return err
			}
			return c.print(rsvp, func(w io.Writer) {
				fmt.Fprintf(w, "RSVP %s for %s\ncheck-in token: %s\n", rsvp.Status, rsvp.EventID, rsvp.QRCode)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "cancel [event-id]",
		Short: "Cancel an RSVP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.client().CancelRSVP(cmd.Context(), args[0], user); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "cancelled RSVP for %s\n", args[0])
			return nil
		},
	})

	var pngPath string
	qrCmd := &cobra.Command{
		Use:   "qr [event-id]",
		Short: "Fetch a check-in QR code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := c.client().RSVPQRCode(cmd.Context(), args[0], user)
			if err != nil {
				return err
			}
			if pngPath != "" {
				if err := writeDataURI(pngPath, code.Image); err != nil {
					return err
				}
			}
			return c.print(code, func(w io.Writer) {
				fmt.Fprintln(w, code.QRCodeData)
				if pngPath != "" {
					fmt.Fprintf(w, "image written to %s\n", pngPath)
				}
			})
		},
	}
	qrCmd.Flags().StringVar(&pngPath, "png", "", "Write the QR image to this file")
	cmd.AddCommand(qrCmd)

	return cmd
}

// writeDataURI decodes a base64 data URI into path
func writeDataURI(path, uri string) error {
	i := strings.Index(uri, ";base64,")
	if i < 0 {
		return fmt.Errorf("unexpected image encoding")
	}
	data, err := base64.StdEncoding.DecodeString(uri[i+len(";base64,"):])
	if err != nil {
		return fmt.Errorf("failed to decode image: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func checkinCmd(c *cli) *cobra.Command {
	var user, qrData, qrFile string
	cmd := &cobra.Command{
		Use:   "checkin [event-id]",
		Short: "Check in with a scanned QR code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if qrFile != "" {
				data, err := os.ReadFile(qrFile)
				if err != nil {
					return err
				}
				qrData = strings.TrimSpace(string(data))
			}
			if qrData == "" {
				return fmt.Errorf("one of --qr or --qr-file is required")
			}

			result, err := c.client().CheckIn(cmd.Context(), args[0], user, qrData)
			if err != nil {
				return err
			}
			return c.print(result, func(w io.Writer) {
				fmt.Fprintf(w, "checked in to %s\n", result.CheckIn.EventID)
				if result.CheckIn.StampAwarded {
					fmt.Fprintf(w, "stamp: %s (+%d XP)\n", result.Stamp.Name, result.Stamp.XP)
				}
				fmt.Fprintf(w, "level %d, %d XP, %d stamps\n", result.Profile.Level, result.Profile.XP, result.Profile.StampsCount)
			})
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "Attendee wallet address")
	cmd.Flags().StringVar(&qrData, "qr", "", "Scanned QR content")
	cmd.Flags().StringVar(&qrFile, "qr-file", "", "File holding the scanned QR content")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
