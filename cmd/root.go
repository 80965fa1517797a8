package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const version = "0.1.0"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "historian",
	Short: "Enrich Spotify streaming history exports with remote metadata",
	Long: `A CLI tool for enriching Spotify data exports (extended streaming
history and technical log) with audio features, artist genres, podcast
details, playlist details and IP geolocation, then analysing the result.

Lookups are deduplicated, paced and resumable; outputs land in
<output>/<subject>/<kind>.csv and are never recomputed unless forced.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

// Execute runs the root command. SIGINT or SIGTERM cancels the running job.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.historian/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("data", "data", "directory holding one export folder per subject")
	rootCmd.PersistentFlags().String("output", "output", "directory enriched files are written to")

	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("paths.data", rootCmd.PersistentFlags().Lookup("data"))
	viper.BindPFlag("paths.output", rootCmd.PersistentFlags().Lookup("output"))
}

func initConfig() {
	// .env is optional; it only pre-populates the environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: could not load .env: %v\n", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		configDir := filepath.Join(home, ".historian")
		os.MkdirAll(configDir, 0755)

		viper.AddConfigPath(configDir)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// spotify.client_id <- SPOTIFY_CLIENT_ID
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.ReadInConfig()

	// Set defaults
	viper.SetDefault("spotify.client_id", "")
	viper.SetDefault("spotify.client_secret", "")
	viper.SetDefault("spotify.token", "")
	viper.SetDefault("api.timeout", "5s")
	viper.SetDefault("api.spotify.requests_per_second", 10)
	viper.SetDefault("api.ipinfo.token", "")
	viper.SetDefault("api.musicbrainz.user_agent", "historian/"+version+" (https://github.com/cerberussg/historian)")
	viper.SetDefault("api.musicbrainz.enabled", true)
	viper.SetDefault("pipeline.progress_every", 250)
	viper.SetDefault("pipeline.refresh_every", 5000)
	viper.SetDefault("pipeline.refresh_after", "50m")
	viper.SetDefault("log.level", "info")
}

func setupLogging(cmd *cobra.Command, args []string) error {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	level, err := zerolog.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logger = logger.Level(level)

	if used := viper.ConfigFileUsed(); used != "" {
		logger.Debug().Str("config", used).Msg("using config file")
	}

	cmd.SetContext(logger.WithContext(cmd.Context()))
	return nil
}
