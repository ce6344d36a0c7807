package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hellhack-ui/HoloPass/internal/client"
	"github.com/hellhack-ui/HoloPass/internal/logging"
)

// cli carries the resolved settings for one invocation
type cli struct {
	v   *viper.Viper
	out io.Writer
}

func (c *cli) client() *client.Client {
	return client.New(c.v.GetString("server"), client.WithToken(c.v.GetString("token")))
}

// print writes v as indented JSON, or calls text when --json is off
func (c *cli) print(v interface{}, text func(w io.Writer)) error {
	if c.v.GetBool("json") || text == nil {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(c.out)
	return nil
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{v: viper.New(), out: out}

	rootCmd := &cobra.Command{
		Use:           "holopass",
		Short:         "HoloPass - event passports on chain",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(c.v); err != nil {
				return err
			}
			level := logging.LevelWarn
			if c.v.GetBool("verbose") {
				level = logging.LevelDebug
			}
			logging.InitGlobalLogger(level, logging.FormatText)
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("server", "http://localhost:8080", "HoloPass server URL")
	flags.String("token", "", "Session token from 'holopass login'")
	flags.Bool("json", false, "Output as JSON")
	flags.BoolP("verbose", "v", false, "Enable verbose output")
	for _, name := range []string{"server", "token", "json", "verbose"} {
		_ = c.v.BindPFlag(name, flags.Lookup(name))
	}

	rootCmd.AddCommand(healthCmd(c))
	rootCmd.AddCommand(eventsCmd(c))
	rootCmd.AddCommand(rsvpCmd(c))
	rootCmd.AddCommand(checkinCmd(c))
	rootCmd.AddCommand(loginCmd(c))
	rootCmd.AddCommand(profileCmd(c))
	rootCmd.AddCommand(passportCmd(c))

	rootCmd.SetOut(c.out)
	return rootCmd
}

// loadConfig reads HOLOPASS_* variables and ~/.holopass/config.yaml. Flags win.
func loadConfig(v *viper.Viper) error {
	v.SetEnvPrefix("HOLOPASS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	path := os.Getenv("HOLOPASS_CONFIG")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		path = filepath.Join(home, ".holopass", "config.yaml")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}

func healthCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show server status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := c.client().Health(cmd.Context())
			if err != nil {
				return err
			}
			return c.print(h, func(w io.Writer) {
				fmt.Fprintf(w, "%s: %s (mode %s, web3 configured: %t)\n", h.Service, h.Status, h.Mode, h.Web3Configured)
			})
		},
	}
}
