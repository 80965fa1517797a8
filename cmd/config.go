package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration settings",
	Long: `View and modify configuration settings for historian.

Settings are stored in ~/.historian/config.yaml. Every key can also be set
through the environment, e.g. SPOTIFY_CLIENT_ID for spotify.client_id, or
in a .env file in the working directory.`,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration key to a specific value.

Available keys:
  spotify.client_id                 - Spotify app client id
  spotify.client_secret             - Spotify app client secret
  spotify.token                     - Pre-issued user token (skips client credentials)
  api.timeout                       - Per-lookup timeout (default: 5s)
  api.spotify.requests_per_second   - Spotify request pacing (default: 10)
  api.ipinfo.token                  - ipinfo.io API token (optional)
  api.musicbrainz.user_agent        - User agent for MusicBrainz requests
  api.musicbrainz.enabled           - Fall back to MusicBrainz for genres (default: true)
  pipeline.progress_every           - Successful lookups per progress line (default: 250)
  pipeline.refresh_every            - Successful lookups per token refresh (default: 5000)
  pipeline.refresh_after            - Token age that forces a refresh (default: 50m)
  paths.data                        - Export root (default: data)
  paths.output                      - Output root (default: output)
  log.level                         - Log level (default: info)

Examples:
  historian config set spotify.client_id 0123abcd
  historian config set pipeline.refresh_after 30m`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configShowCmd = &cobra.Command{
	Use:   "show [key]",
	Short: "Show configuration values",
	Long: `Display current configuration settings. If no key is specified,
shows all settings. Secrets are masked.

Examples:
  historian config show
  historian config show pipeline.refresh_every`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	viper.Set(key, value)

	if err := viper.WriteConfig(); err != nil {
		// Try to write to default location if config doesn't exist
		if err := viper.SafeWriteConfig(); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", key, display(key, viper.Get(key)))
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if len(args) == 1 {
		key := args[0]
		value := viper.Get(key)
		if value == nil {
			fmt.Fprintf(out, "Key '%s' is not set\n", key)
			return nil
		}
		fmt.Fprintf(out, "%s = %v\n", key, display(key, value))
		return nil
	}

	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintf(out, "Config file: %s\n\n", viper.ConfigFileUsed())

	keys := viper.AllKeys()
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{key, fmt.Sprint(display(key, viper.Get(key)))})
	}
	fmt.Fprintln(out, renderTable([]string{"Key", "Value"}, rows, nil))
	return nil
}

// display masks secrets
func display(key string, value interface{}) interface{} {
	if !isSecret(key) {
		return value
	}
	s := fmt.Sprint(value)
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}

func isSecret(key string) bool {
	return strings.HasSuffix(key, "secret") || strings.HasSuffix(key, "token")
}
