package cli

import (
	"fmt"
	"os"

	"github.com/memora/backend/internal/client"
	"github.com/spf13/cobra"
)

var (
	flagJSON      bool
	flagServerURL string

	cfg       *Config
	apiClient *client.Client
)

var rootCmd = &cobra.Command{
	Use:   "memora",
	Short: "Memora CLI: keep your memories from the terminal",
	Long: `Memora CLI lets you create memories from local photos, browse them and
clean them up on your Memora server.

Get started:
  memora login --email you@example.com
  memora create --title "Lisbon" --date 2024-05-01 --mood Happy a.jpg b.jpg
  memora ls`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if flagServerURL != "" {
			cfg.ServerURL = flagServerURL
		}
		apiClient = client.NewClient(cfg.ServerURL, cfg.Token)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().StringVar(&flagServerURL, "server", "", "Override server URL (default: from config or "+DefaultURL+")")
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func requireAuth() error {
	if cfg == nil || !cfg.HasToken() {
		return fmt.Errorf("not authenticated, run \"memora login\" first")
	}
	return nil
}
