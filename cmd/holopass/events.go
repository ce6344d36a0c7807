package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hellhack-ui/HoloPass/internal/models"
	"github.com/hellhack-ui/HoloPass/internal/types"
)

func eventsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Browse and manage events",
	}
	cmd.AddCommand(eventsListCmd(c))
	cmd.AddCommand(eventsGetCmd(c))
	cmd.AddCommand(eventsStatsCmd(c))
	cmd.AddCommand(eventsCreateCmd(c))
	cmd.AddCommand(eventsDeleteCmd(c))
	return cmd
}

func printEvents(w io.Writer, events []*models.Event) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCATEGORY\tSTART\tATTENDEES\tXP")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\t%d\n",
			e.ID, e.Title, e.Category, e.StartDate.Format("2006-01-02 15:04"),
			e.AttendeeCount, e.Capacity, e.Rewards.Stamp.XP)
	}
	tw.Flush()
}

func eventsListCmd(c *cli) *cobra.Command {
	var filter models.EventFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := c.client().ListEvents(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return c.print(events, func(w io.Writer) { printEvents(w, events) })
		},
	}
	cmd.Flags().StringVarP(&filter.Category, "category", "c", "", "Category, or 'all'")
	cmd.Flags().StringVarP(&filter.Search, "search", "s", "", "Search title and description")
	cmd.Flags().StringVarP(&filter.Location, "location", "l", "", "Location substring")
	return cmd
}

func eventsGetCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "get [id]",
		Short: "Show one event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := c.client().GetEvent(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.print(e, func(w io.Writer) {
				fmt.Fprintf(w, "%s\n%s\n\n", e.Title, e.Description)
				fmt.Fprintf(w, "When:     %s - %s\n", e.StartDate.Format(time.RFC1123), e.EndDate.Format(time.RFC1123))
				fmt.Fprintf(w, "Where:    %s, %s\n", e.Location.Name, e.Location.Address)
				fmt.Fprintf(w, "Capacity: %d/%d\n", e.AttendeeCount, e.Capacity)
				fmt.Fprintf(w, "Stamp:    %s (%s, %d XP)\n", e.Rewards.Stamp.Name, e.Rewards.Stamp.Rarity, e.Rewards.Stamp.XP)
			})
		},
	}
}

func eventsStatsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stats [id]",
		Short: "Show attendance stats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.client().EventStats(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.print(s, func(w io.Writer) {
				fmt.Fprintf(w, "confirmed %d/%d, cancelled %d, checked in %d, %d XP awarded (%s)\n",
					s.Confirmed, s.Capacity, s.Cancelled, s.CheckedIn, s.XPAwarded, s.Source)
			})
		},
	}
}

func eventsCreateCmd(c *cli) *cobra.Command {
	var (
		organizer, title, description, category string
		capacity                                int
		start                                   string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := models.EventInput{Title: &title}
			if description != "" {
				in.Description = &description
			}
			if category != "" {
				cat := types.EventCategory(category)
				in.Category = &cat
			}
			if cmd.Flags().Changed("capacity") {
				in.Capacity = &capacity
			}
			if start != "" {
				t, err := time.Parse(time.RFC3339, start)
				if err != nil {
					return fmt.Errorf("--start must be RFC 3339: %w", err)
				}
				in.StartDate = &t
			}
			e, err := c.client().CreateEvent(cmd.Context(), organizer, in)
			if err != nil {
				return err
			}
			return c.print(e, func(w io.Writer) { fmt.Fprintf(w, "created %s\n", e.ID) })
		},
	}
	cmd.Flags().StringVar(&organizer, "organizer", "", "Organizer wallet address")
	cmd.Flags().StringVar(&title, "title", "", "Title")
	cmd.Flags().StringVar(&description, "description", "", "Description")
	cmd.Flags().StringVar(&category, "category", "", "Category")
	cmd.Flags().IntVar(&capacity, "capacity", 0, "Capacity")
	cmd.Flags().StringVar(&start, "start", "", "Start time (RFC 3339)")
	_ = cmd.MarkFlagRequired("organizer")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func eventsDeleteCmd(c *cli) *cobra.Command {
	var organizer string
	cmd := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete an event you organize",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.client().DeleteEvent(cmd.Context(), args[0], organizer); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "deleted %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&organizer, "organizer", "", "Organizer wallet address")
	_ = cmd.MarkFlagRequired("organizer")
	return cmd
}
