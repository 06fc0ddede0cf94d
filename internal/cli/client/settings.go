package client

import (
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

// settingKeys are the keys accepted by 'docrag config set'.
var settingKeys = []string{"api-url", "default-schema", "top-k"}

// ConfigCmd manages the per-user defaults in the global config.
func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change saved defaults",
		Long: `Saved defaults apply when a command leaves the matching flag unset:

  api-url         server URL used without --api-url or DOCRAG_API_URL
  default-schema  schema used by 'docrag extract' without --schema
  top-k           chunk count used by search, ask and claims coverage`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the saved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadOrEmpty()
			if err != nil {
				return err
			}
			writeSettings(cmd.OutOrStdout(), config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:       "set <key> <value>",
		Short:     "Save a default",
		Args:      cobra.ExactArgs(2),
		ValidArgs: settingKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateSetting(args[0], args[1])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:       "unset <key>",
		Short:     "Remove a default",
		Args:      cobra.ExactArgs(1),
		ValidArgs: settingKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateSetting(args[0], "")
		},
	})

	return cmd
}

// updateSetting stores value under key; an empty value clears it.
func updateSetting(key, value string) error {
	config, err := loadOrEmpty()
	if err != nil {
		return err
	}

	switch key {
	case "api-url":
		if value != "" {
			if u, err := url.Parse(value); err != nil || u.Scheme == "" || u.Host == "" {
				return fmt.Errorf("api-url must be an absolute URL, got %q", value)
			}
		}
		config.APIURL = value
	case "default-schema":
		config.DefaultSchema = value
	case "top-k":
		k := 0
		if value != "" {
			if k, err = strconv.Atoi(value); err != nil || k <= 0 {
				return fmt.Errorf("top-k must be a positive integer, got %q", value)
			}
		}
		config.TopK = k
	default:
		return fmt.Errorf("unknown key %q (valid: %v)", key, settingKeys)
	}

	return SaveGlobalConfig(config)
}

func writeSettings(w io.Writer, config *GlobalConfig) {
	show := func(key, value string) {
		if value == "" {
			value = "(unset)"
		}
		fmt.Fprintf(w, "%-15s %s\n", key, value)
	}
	show("api-url", config.APIURL)
	if config.APIKey != "" {
		show("api-key", maskAPIKey(config.APIKey))
	}
	show("default-schema", config.DefaultSchema)
	topK := ""
	if config.TopK > 0 {
		topK = strconv.Itoa(config.TopK)
	}
	show("top-k", topK)
}

// userDefaults returns the saved defaults, or an empty config when the file
// is missing or unreadable.
func userDefaults() *GlobalConfig {
	config, err := LoadGlobalConfig()
	if err != nil || config == nil {
		return &GlobalConfig{}
	}
	return config
}

// topKOrDefault keeps an explicit --top-k and otherwise falls back to the
// saved default. Zero leaves the choice to the server.
func topKOrDefault(cmd *cobra.Command, topK int) int {
	if cmd.Flags().Changed("top-k") {
		return topK
	}
	return userDefaults().TopK
}
