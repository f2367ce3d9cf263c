package cli

import (
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagFormat string
	flagAction string
	flagOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Download your account activity log",
	Long: `Download your activity log as CSV or JSON.

  memora export --output activity.csv
  memora export --format json --action storage.divergence`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAuth(); err != nil {
			return err
		}

		params := url.Values{}
		params.Set("format", flagFormat)
		if flagAction != "" {
			params.Set("action", flagAction)
		}

		var w io.Writer = cmd.OutOrStdout()
		if flagOutput != "" {
			f, err := os.Create(flagOutput)
			if err != nil {
				return fmt.Errorf("creating %s: %w", flagOutput, err)
			}
			defer f.Close()
			w = f
		}

		if err := apiClient.Download("/activity/export", params, w); err != nil {
			return fmt.Errorf("exporting activity: %w", err)
		}
		if flagOutput != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Saved activity to %s\n", flagOutput)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&flagFormat, "format", "csv", "csv or json")
	exportCmd.Flags().StringVar(&flagAction, "action", "", "Only export one action, e.g. storage.divergence")
	exportCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Write to a file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}
