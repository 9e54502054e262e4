package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jwebster45206/escape-engine/internal/commands"
	"github.com/jwebster45206/escape-engine/internal/config"
	"github.com/jwebster45206/escape-engine/internal/host"
	"github.com/jwebster45206/escape-engine/internal/host/local"
	"github.com/jwebster45206/escape-engine/internal/logger"
)

var (
	consoleTheme    string
	consoleProvider string
	consoleName     string
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Play an adventure in the terminal",
	Long: `Console runs the full engine in-process against a local host. Sessions are
stored like the bot's, so quitting and restarting resumes where you left off.
Use --provider scripted to play without a language model.`,
	RunE: runConsole,
}

func init() {
	consoleCmd.Flags().StringVar(&consoleTheme, "theme", "", "story theme for a new session")
	consoleCmd.Flags().StringVar(&consoleProvider, "provider", "", "LLM provider, overriding LLM_PROVIDER")
	consoleCmd.Flags().StringVar(&consoleName, "name", "", "player display name (default $USER)")
}

func runConsole(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if consoleProvider != "" {
		cfg.UseProvider(consoleProvider)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// The TUI owns the terminal, so logs go to a file.
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	logPath := filepath.Join(cfg.DataDir, "console.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()
	log := logger.SetupWriter(cfg, logFile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	llm, err := newLLMService(cfg, log)
	if err != nil {
		return err
	}
	platform := local.New(64)

	fmt.Fprintf(cmd.OutOrStdout(), "Starting narrator (%s)...\n", cfg.LLMProvider)
	a, err := newApp(ctx, cfg, log, llm, platform)
	if err != nil {
		return err
	}
	defer a.Close(log)

	persisted, err := a.store.LoadAll(ctx)
	if err != nil {
		return err
	}
	rooms := make([]string, 0, len(persisted))
	for _, s := range persisted {
		rooms = append(rooms, s.RoomID)
	}
	platform.Restore(rooms...)
	if err := a.engine.Resume(ctx); err != nil {
		return err
	}

	player := consolePlayer(consoleName)
	ui := NewConsoleUI(a.engine, commands.NewDispatcher(a.engine, log), platform, player, consoleTheme)

	p := tea.NewProgram(ui,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}

func consolePlayer(name string) host.Player {
	if name == "" {
		name = os.Getenv("USER")
	}
	if name == "" {
		name = "Player"
	}
	return host.Player{ID: "console-" + strings.ToLower(name), DisplayName: name}
}
