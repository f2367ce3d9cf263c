package cli

import (
	"bufio"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/memora/backend/internal/client"
	"github.com/spf13/cobra"
)

var (
	flagEmail    string
	flagPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in with email and password",
	Long: `Log in to your Memora server and store the session token.

  memora login --email you@example.com
  memora login --email you@example.com --password secret   (non-interactive)

Accounts created with Google sign-in have no password and cannot log in here.`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ClearConfig(); err != nil {
			return fmt.Errorf("clearing config: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current account",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAuth(); err != nil {
			return err
		}

		var resp client.Response[client.Profile]
		if err := apiClient.Get("/profile", nil, &resp); err != nil {
			return fmt.Errorf("fetching profile: %w", err)
		}

		if flagJSON {
			printJSON(cmd.OutOrStdout(), resp.Data)
			return nil
		}
		profileInfo(cmd.OutOrStdout(), resp.Data)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&flagEmail, "email", "", "Account email")
	loginCmd.Flags().StringVar(&flagPassword, "password", "", "Account password (prompted when omitted)")
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	reader := bufio.NewReader(cmd.InOrStdin())

	email := strings.TrimSpace(flagEmail)
	if email == "" {
		fmt.Fprint(cmd.OutOrStdout(), "Email: ")
		line, _ := reader.ReadString('\n')
		email = strings.TrimSpace(line)
	}
	password := flagPassword
	if password == "" {
		fmt.Fprint(cmd.OutOrStdout(), "Password: ")
		line, _ := reader.ReadString('\n')
		password = strings.TrimRight(line, "\r\n")
	}
	if email == "" || password == "" {
		return fmt.Errorf("email and password are required")
	}

	var resp client.Response[client.Session]
	err := apiClient.Post("/login", map[string]string{"email": email, "password": password}, &resp)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusForbidden {
			return fmt.Errorf("%s: check your inbox for the verification link", apiErr.Message)
		}
		return fmt.Errorf("logging in: %w", err)
	}

	cfg.Token = resp.Data.Token
	cfg.Email = resp.Data.User.Email
	if err := SaveConfig(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", resp.Data.User.Name, resp.Data.User.Email)
	return nil
}
