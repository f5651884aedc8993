// /cmd/player/main.go
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/evictbot/playerlink/internal/config"
	"github.com/evictbot/playerlink/internal/enrich"
	"github.com/evictbot/playerlink/internal/history"
	"github.com/evictbot/playerlink/internal/logger"
	"github.com/evictbot/playerlink/internal/session"
	"github.com/evictbot/playerlink/internal/version"
)

var guildID string

var rootCmd = &cobra.Command{
	Use:   "player",
	Short: version.AppDescription,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(guildID)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("%s %s\n", version.AppName, version.AppVersion)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&guildID, "guild", "g", "", "guild id to attach to (required)")
	_ = rootCmd.MarkFlagRequired("guild")
	rootCmd.AddCommand(versionCmd)
}

func run(guildID string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	resolver := enrich.NewResolver(cfg, log)

	store, err := history.New(cfg.HistoryPath)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()

	manager := session.NewManager(func(id string) *session.Session {
		opts := session.OptionsFromConfig(id, cfg)
		opts.Enricher = resolver
		opts.Recorder = store.Guild(id)
		opts.Log = log
		return session.New(opts)
	}, log)
	defer manager.CloseAll()

	sess := manager.Open(guildID)

	recent := func() []history.PlayedTrack {
		tracks, err := store.Recent(guildID)
		if err != nil {
			log.Warn().Err(err).Msg("read history")
			return nil
		}
		return tracks
	}

	p := tea.NewProgram(newModel(sess, recent), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
