// Package main provides the repopulse binary entry point.
// Repopulse is the client core of a repository activity dashboard: it keeps
// one canonical repository snapshot consistent while a push channel, a
// streamed chat response, and local optimistic mutations feed it.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/c360studio/repopulse/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "repopulse"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		serverURL  string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "repopulse",
		Short: "Repository dashboard client",
		Long: `Repopulse is the terminal client for the repository dashboard backend.

It provides:
- A live view of repository activity over the push channel
- Streamed AI chat grounded in the current repository snapshot
- Task board mutations with optimistic local effect`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&serverURL, "server", "", "Backend base URL (overrides config)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	loadApp := func() (*App, error) {
		configureLogging(logLevel)

		cfg, err := loadConfig(configPath)
		if err != nil {
			return nil, err
		}
		if serverURL != "" {
			cfg.Server.BaseURL = serverURL
		}

		return NewApp(cfg), nil
	}

	cmd.AddCommand(watchCmd(loadApp))
	cmd.AddCommand(chatCmd(loadApp))
	cmd.AddCommand(boardCmd(loadApp))

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func watchCmd(loadApp func() (*App, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <owner>/<repo>",
		Short: "Follow a repository's live activity feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, repo, err := splitRepoArg(args[0])
			if err != nil {
				return err
			}
			app, err := loadApp()
			if err != nil {
				return err
			}
			return app.Watch(cmd.Context(), owner, repo)
		},
	}
}

func chatCmd(loadApp func() (*App, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <owner>/<repo>",
		Short: "Chat with the AI assistant about a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, repo, err := splitRepoArg(args[0])
			if err != nil {
				return err
			}
			app, err := loadApp()
			if err != nil {
				return err
			}
			return app.Chat(cmd.Context(), owner, repo)
		},
	}
}

func boardCmd(loadApp func() (*App, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Inspect and mutate the task board",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List board tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp()
			if err != nil {
				return err
			}
			return app.BoardList(cmd.Context())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "move <task-id> <column>",
		Short: "Move a task to another column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp()
			if err != nil {
				return err
			}
			return app.BoardMove(cmd.Context(), args[0], args[1])
		},
	})

	return cmd
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		cfg, err := config.LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return config.NewLoader(slog.Default()).Load()
}

func configureLogging(logLevel string) {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func splitRepoArg(arg string) (owner, repo string, err error) {
	parts := strings.SplitN(arg, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("expected <owner>/<repo>, got %q", arg)
	}
	return parts[0], parts[1], nil
}
