package cli

import (
	"bufio"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/memora/backend/internal/client"
	"github.com/spf13/cobra"
)

var (
	flagTitle       string
	flagDate        string
	flagMood        string
	flagDescription string
	flagLocation    string
	flagVisibility  string
	flagForce       bool
)

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List your memories, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAuth(); err != nil {
			return err
		}

		var resp client.Response[[]client.Memory]
		if err := apiClient.Get("/memories", nil, &resp); err != nil {
			return fmt.Errorf("listing memories: %w", err)
		}

		if flagJSON {
			printJSON(cmd.OutOrStdout(), resp.Data)
			return nil
		}
		memoryTable(cmd.OutOrStdout(), resp.Data)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <memory-id>",
	Short: "Show a memory with fresh photo links",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAuth(); err != nil {
			return err
		}

		memory, err := fetchMemory(args[0])
		if err != nil {
			return err
		}
		return printMemory(cmd, memory)
	},
}

var moodsCmd = &cobra.Command{
	Use:   "moods",
	Short: "List suggested moods",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAuth(); err != nil {
			return err
		}

		var resp client.Response[[]string]
		if err := apiClient.Get("/memories/moods", nil, &resp); err != nil {
			return fmt.Errorf("fetching moods: %w", err)
		}
		if flagJSON {
			printJSON(cmd.OutOrStdout(), resp.Data)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(resp.Data, ", "))
		return nil
	},
}

var createCmd = &cobra.Command{
	Use:   "create <photo> [photo...]",
	Short: "Create a memory from up to 10 photos",
	Long: `Create a memory from local photos. Photos keep the order given.

  memora create --title "Lisbon" --date 2024-05-01 --mood Happy a.jpg b.jpg`,
	Args: cobra.RangeArgs(1, 10),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAuth(); err != nil {
			return err
		}

		fields := map[string]string{
			"title":      flagTitle,
			"date":       flagDate,
			"mood":       flagMood,
			"visibility": flagVisibility,
		}
		if flagDescription != "" {
			fields["description"] = flagDescription
		}
		if flagLocation != "" {
			fields["location"] = flagLocation
		}

		var resp client.Response[client.Memory]
		if err := apiClient.Upload(http.MethodPost, "/memories", "media", args, fields, &resp); err != nil {
			return fmt.Errorf("creating memory: %w", err)
		}
		if !flagJSON {
			fmt.Fprintf(cmd.OutOrStdout(), "Created memory %s with %d photo(s)\n", resp.Data.ID, resp.Data.PhotoCount)
		}
		return printMemoryJSON(cmd, resp.Data)
	},
}

var addPhotosCmd = &cobra.Command{
	Use:   "add-photos <memory-id> <photo> [photo...]",
	Short: "Append photos to a memory",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAuth(); err != nil {
			return err
		}

		var resp client.Response[client.Memory]
		if err := apiClient.Upload(http.MethodPost, "/memories/"+args[0]+"/photos", "media", args[1:], nil, &resp); err != nil {
			return fmt.Errorf("adding photos: %w", err)
		}
		if !flagJSON {
			fmt.Fprintf(cmd.OutOrStdout(), "Memory %s now has %d photo(s)\n", resp.Data.ID, resp.Data.PhotoCount)
		}
		return printMemoryJSON(cmd, resp.Data)
	},
}

var rmPhotoCmd = &cobra.Command{
	Use:   "rm-photo <memory-id> <photo-number|url>",
	Short: "Remove one photo from a memory",
	Long: `Remove one photo, by its position as listed by "memora show" (starting
at 1) or by one of its links. The last photo of a memory cannot be removed.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAuth(); err != nil {
			return err
		}

		photoURL := args[1]
		if n, err := strconv.Atoi(args[1]); err == nil {
			memory, err := fetchMemory(args[0])
			if err != nil {
				return err
			}
			if n < 1 || n > len(memory.AllMediaURLs) {
				return fmt.Errorf("photo %d out of range, memory has %d photo(s)", n, len(memory.AllMediaURLs))
			}
			photoURL = memory.AllMediaURLs[n-1]
		}

		var resp client.Response[client.Memory]
		if err := apiClient.Delete("/memories/"+args[0]+"/photos", map[string]string{"photoUrl": photoURL}, &resp); err != nil {
			return fmt.Errorf("removing photo: %w", err)
		}
		if !flagJSON {
			fmt.Fprintf(cmd.OutOrStdout(), "Removed photo, %d left\n", resp.Data.PhotoCount)
		}
		return printMemoryJSON(cmd, resp.Data)
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <memory-id>",
	Short: "Delete a memory and all of its photos",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAuth(); err != nil {
			return err
		}

		memory, err := fetchMemory(args[0])
		if err != nil {
			return err
		}

		if !flagForce {
			fmt.Fprintf(cmd.OutOrStdout(), "Delete %q and its %d photo(s)? This cannot be undone. [y/N] ", memory.Title, memory.PhotoCount)
			answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			answer = strings.TrimSpace(strings.ToLower(answer))
			if answer != "y" && answer != "yes" {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
				return nil
			}
		}

		var resp client.Response[client.Message]
		if err := apiClient.Delete("/memories/"+args[0], nil, &resp); err != nil {
			return fmt.Errorf("deleting memory: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted: %s\n", memory.Title)
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&flagTitle, "title", "", "Memory title")
	createCmd.Flags().StringVar(&flagDate, "date", "", "Memory date, YYYY-MM-DD")
	createCmd.Flags().StringVar(&flagMood, "mood", "", "Mood, see \"memora moods\"")
	createCmd.Flags().StringVar(&flagDescription, "description", "", "Optional description")
	createCmd.Flags().StringVar(&flagLocation, "location", "", "Optional location")
	createCmd.Flags().StringVar(&flagVisibility, "visibility", "private", "private or shared")
	_ = createCmd.MarkFlagRequired("title")
	_ = createCmd.MarkFlagRequired("date")
	_ = createCmd.MarkFlagRequired("mood")

	rmCmd.Flags().BoolVarP(&flagForce, "force", "f", false, "Skip confirmation prompt")

	rootCmd.AddCommand(lsCmd, showCmd, moodsCmd, createCmd, addPhotosCmd, rmPhotoCmd, rmCmd)
}

func fetchMemory(id string) (client.Memory, error) {
	var resp client.Response[client.Memory]
	if err := apiClient.Get("/memories/"+id, nil, &resp); err != nil {
		return client.Memory{}, fmt.Errorf("fetching memory: %w", err)
	}
	return resp.Data, nil
}

func printMemory(cmd *cobra.Command, m client.Memory) error {
	if flagJSON {
		printJSON(cmd.OutOrStdout(), m)
		return nil
	}
	memoryDetail(cmd.OutOrStdout(), m)
	return nil
}

func printMemoryJSON(cmd *cobra.Command, m client.Memory) error {
	if flagJSON {
		printJSON(cmd.OutOrStdout(), m)
	}
	return nil
}
