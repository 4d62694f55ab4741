package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/c360studio/repopulse/api"
	"github.com/c360studio/repopulse/board"
	"github.com/c360studio/repopulse/chat"
	"github.com/c360studio/repopulse/config"
	"github.com/c360studio/repopulse/livefeed"
	"github.com/c360studio/repopulse/snapshot"
)

// App wires the client core together for terminal use.
type App struct {
	cfg *config.Config

	api   *api.Client
	feed  *livefeed.Client
	chat  *chat.Client
	board *board.Client
	store *snapshot.Store
}

// NewApp creates a new application instance from config.
func NewApp(cfg *config.Config) *App {
	logger := slog.Default()

	reconciler := snapshot.NewReconciler(
		snapshot.WithMaxNotifications(cfg.Notifications.Max),
		snapshot.WithReconcilerLogger(logger),
	)

	return &App{
		cfg: cfg,
		api: api.NewClient(cfg.Server.BaseURL,
			api.WithLogger(logger),
			api.WithRetryConfig(api.RetryConfig{
				MaxAttempts:       cfg.Retry.MaxAttempts,
				BackoffBase:       cfg.Retry.BackoffBase,
				BackoffMultiplier: cfg.Retry.BackoffMultiplier,
				MaxBackoff:        cfg.Retry.MaxBackoff,
			})),
		feed:  livefeed.NewClient(cfg.Server.BaseURL, livefeed.WithLogger(logger)),
		chat:  chat.NewClient(cfg.Server.BaseURL, chat.WithLogger(logger)),
		board: board.NewClient(cfg.Server.BaseURL, board.WithLogger(logger)),
		store: snapshot.NewStore(
			snapshot.WithReconciler(reconciler),
			snapshot.WithStoreLogger(logger),
		),
	}
}

// Watch loads the repository snapshot and follows its live feed until
// interrupted or the connection drops.
func (a *App) Watch(ctx context.Context, owner, repo string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	snap, err := a.api.FetchRepository(ctx, owner, repo)
	if err != nil {
		return fmt.Errorf("load %s/%s: %w", owner, repo, err)
	}
	a.store.Load(snap)

	fmt.Printf("Watching %s/%s (%d commits known)\n", owner, repo, len(snap.Commits))

	// One connection per repository: the previous subscription must be
	// closed before a new one is opened. Watch holds exactly one.
	sub, err := a.feed.Subscribe(ctx, owner, repo, func(ev livefeed.Event) {
		a.store.Apply(ev)
		a.printEvent(ev)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s/%s: %w", owner, repo, err)
	}
	defer sub.Close()

	select {
	case <-ctx.Done():
		fmt.Println("\nStopping.")
		return nil
	case <-sub.Done():
		// Data already rendered stays; only the connection state changed.
		fmt.Println("Connection lost. Re-run to reconnect.")
		return nil
	}
}

func (a *App) printEvent(ev livefeed.Event) {
	switch ev := ev.(type) {
	case *livefeed.ConnectedEvent:
		fmt.Println("✓ Live feed connected")
	case *livefeed.SummaryEvent:
		if ev.SummaryError != "" {
			fmt.Printf("Summary failed: %s\n", ev.SummaryError)
		} else {
			fmt.Println("Summary updated")
		}
	case *livefeed.PlaybookEvent:
		fmt.Printf("Playbook available: %v\n", ev.Available)
	case *livefeed.WebhookReceivedEvent:
		fmt.Println("Webhook received")
	case *livefeed.CommitEvent:
		fmt.Printf("New commit %.8s by %s: %s\n", ev.CommitID, ev.Author, ev.Message)
	case *livefeed.CommitProcessedEvent:
		fmt.Printf("Commit %.8s enriched (%s)\n", ev.CommitID, ev.Category)
	case *livefeed.PlaybookUpdatedEvent:
		fmt.Println("Playbook updated")
	case *livefeed.StreamErrorEvent:
		fmt.Printf("Stream error: %s\n", ev.Message)
	case *livefeed.AnalysisStartedEvent:
		fmt.Printf("Analysis started for %.8s\n", ev.CommitID)
	case *livefeed.CommitAnalyzedEvent:
		fmt.Printf("Analysis progress %d/%d for %.8s\n", ev.Index, ev.Total, ev.CommitID)
	case *livefeed.AnalysisCompletedEvent:
		fmt.Printf("Analysis completed for %.8s\n", ev.CommitID)
	case *livefeed.AnalysisErrorEvent:
		fmt.Printf("Analysis failed for %.8s: %s\n", ev.CommitID, ev.Message)
	}
}

// Chat runs an interactive chat loop against the repository's snapshot.
func (a *App) Chat(ctx context.Context, owner, repo string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	snap, err := a.api.FetchRepository(ctx, owner, repo)
	if err != nil {
		return fmt.Errorf("load %s/%s: %w", owner, repo, err)
	}
	a.store.Load(snap)

	limits := chat.ContextLimits{
		MaxCommits:      a.cfg.Chat.MaxCommits,
		MaxBranches:     a.cfg.Chat.MaxBranches,
		MaxPullRequests: a.cfg.Chat.MaxPullRequests,
		MaxIssues:       a.cfg.Chat.MaxIssues,
		MaxContributors: a.cfg.Chat.MaxContributors,
	}

	session := chat.NewSession(a.chat)

	fmt.Printf("Chatting about %s/%s. Empty line to exit.\n", owner, repo)
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			return nil
		}

		repoCtx := chat.BuildContext(a.store.View().Snapshot, limits)

		_, err := session.Send(ctx, input, repoCtx, func(delta, total string) {
			fmt.Print(delta)
		})
		fmt.Println()
		if err != nil {
			// The transcript already carries the error message; keep the
			// loop alive so the user's history survives the failure.
			fmt.Printf("(error: %v)\n", err)
		}
	}
}

// BoardList prints the board grouped by column.
func (a *App) BoardList(ctx context.Context) error {
	coordinator := board.NewCoordinator(a.board)
	if err := coordinator.Refresh(ctx); err != nil {
		return err
	}

	tasks := coordinator.Tasks()
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].Column != tasks[j].Column {
			return tasks[i].Column < tasks[j].Column
		}
		return tasks[i].Title < tasks[j].Title
	})

	for _, t := range tasks {
		flag := " "
		if t.Flagged {
			flag = "!"
		}
		fmt.Printf("%-12s %s %-36s %s\n", t.Column, flag, t.ID, t.Title)
	}
	return nil
}

// BoardMove moves a task, reporting rollback if the server rejects it.
func (a *App) BoardMove(ctx context.Context, taskID, column string) error {
	coordinator := board.NewCoordinator(a.board)
	if err := coordinator.Refresh(ctx); err != nil {
		return err
	}

	if err := coordinator.Move(ctx, taskID, board.Column(column)); err != nil {
		return fmt.Errorf("move rolled back: %w", err)
	}

	fmt.Printf("Moved %s to %s\n", taskID, column)
	return nil
}
