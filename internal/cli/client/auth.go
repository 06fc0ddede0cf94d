package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// AuthCmd creates the auth parent command
func AuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage authentication credentials",
		Long:  "Login, logout, and check authentication status for the docrag CLI",
	}

	cmd.AddCommand(AuthLoginCmd())
	cmd.AddCommand(AuthLogoutCmd())
	cmd.AddCommand(AuthStatusCmd())

	return cmd
}

// AuthLoginCmd creates the auth login command
func AuthLoginCmd() *cobra.Command {
	var apiKey string
	var apiURL string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login with API key",
		Long: `Store the API key and URL in the global config (~/.config/docrag/config.json).
Defaults saved with 'docrag config set' are kept. Without --api-key the key is
read from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiKey == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "Enter API key: ")
				input, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && input == "" {
					return fmt.Errorf("failed to read API key: %w", err)
				}
				apiKey = strings.TrimSpace(input)
			}
			if err := runAuthLogin(apiKey, apiURL); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Successfully logged in")
			return nil
		},
	}

	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key issued by the server operator")
	cmd.Flags().StringVar(&apiURL, "url", defaultAPIURL, "API URL")

	return cmd
}

// AuthLogoutCmd creates the auth logout command
func AuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Logout and clear credentials",
		Long:  "Remove stored credentials from the global config. Saved defaults are kept.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ClearCredentials(); err != nil {
				return fmt.Errorf("failed to logout: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Successfully logged out")
			return nil
		},
	}
}

// AuthStatusCmd creates the auth status command
func AuthStatusCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		Long:  "Display the credential source and, with --check, whether the server accepts them.",
		RunE: func(cmd *cobra.Command, args []string) error {
			flagKey, _ := cmd.Flags().GetString("api-key")
			flagURL, _ := cmd.Flags().GetString("api-url")
			status := collectAuthStatus(flagKey, flagURL)
			if check && status.Authenticated {
				status.checkServer(cmd.Context(), status.apiKey, status.APIURL)
			}
			if jsonOutput(cmd) {
				return writeStatusJSON(cmd.OutOrStdout(), status)
			}
			writeStatusText(cmd.OutOrStdout(), status)
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Call the server to verify the credentials")

	return cmd
}

func runAuthLogin(apiKey, apiURL string) error {
	if !IsValidAPIKey(apiKey) {
		return fmt.Errorf("invalid API key (expected at least %d characters without whitespace)", minAPIKeyLength)
	}

	config, err := loadOrEmpty()
	if err != nil {
		return err
	}
	config.APIKey = apiKey
	config.APIURL = apiURL

	if err := SaveGlobalConfig(config); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

type authStatus struct {
	Authenticated bool   `json:"authenticated"`
	Source        string `json:"source"`
	APIKey        string `json:"api_key,omitempty"`
	APIURL        string `json:"api_url,omitempty"`
	Server        string `json:"server,omitempty"`

	apiKey string
}

func collectAuthStatus(flagKey, flagURL string) *authStatus {
	source, apiKey, apiURL := GetCredentialSource(flagKey, flagURL)
	status := &authStatus{Authenticated: source != SourceNone, Source: string(source)}
	if status.Authenticated {
		status.APIKey = maskAPIKey(apiKey)
		status.APIURL = apiURL
		status.apiKey = apiKey
	}
	return status
}

// checkServer lists one document, which needs a valid key when the server
// has authentication enabled.
func (s *authStatus) checkServer(ctx context.Context, apiKey, apiURL string) {
	if ctx == nil {
		ctx = context.Background()
	}
	_, err := NewAPIClientWithConfig(apiKey, apiURL, 10*time.Second).Get(ctx, "/documents?limit=1")
	switch {
	case err == nil:
		s.Server = "ok"
	case isUnauthorized(err):
		s.Server = "rejected"
	default:
		s.Server = "unreachable: " + err.Error()
	}
}

func isUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

func writeStatusJSON(w io.Writer, status *authStatus) error {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func writeStatusText(w io.Writer, status *authStatus) {
	if !status.Authenticated {
		fmt.Fprintln(w, "Not authenticated")
		fmt.Fprintln(w, "Run 'docrag auth login' to authenticate")
		return
	}

	fmt.Fprintln(w, "Authenticated: yes")
	fmt.Fprintf(w, "Source: %s\n", status.Source)
	fmt.Fprintf(w, "API Key: %s\n", status.APIKey)
	fmt.Fprintf(w, "API URL: %s\n", status.APIURL)
	if status.Server != "" {
		fmt.Fprintf(w, "Server: %s\n", status.Server)
	}
}

func maskAPIKey(key string) string {
	if len(key) < 8 {
		return "***"
	}
	return key[:7] + "..." + key[len(key)-4:]
}
