package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/bkyoung/review-agent/internal/domain"
	"github.com/bkyoung/review-agent/internal/store"
)

// ErrVersionRequested indicates the user requested the CLI version and no further work should be done.
var ErrVersionRequested = errors.New("version requested")

// Supervised is the view of a launched task the CLI reports on.
type Supervised interface {
	TaskID() string
	Provider() domain.ProviderIdentity
	Outcome() domain.TaskState
	Done() <-chan struct{}
}

// TaskLauncher defines the dependency required to run a one-off task.
type TaskLauncher interface {
	Launch(ctx context.Context, t domain.Task, identity domain.ProviderIdentity) (Supervised, error)
}

// LauncherFunc adapts a function to the TaskLauncher interface.
type LauncherFunc func(ctx context.Context, t domain.Task, identity domain.ProviderIdentity) (Supervised, error)

// Launch implements TaskLauncher.
func (f LauncherFunc) Launch(ctx context.Context, t domain.Task, identity domain.ProviderIdentity) (Supervised, error) {
	return f(ctx, t, identity)
}

// WebhookServer is the listener the serve command controls.
type WebhookServer interface {
	Start() error
	Stop() error
}

// HistoryReader defines the journal queries backing the history command.
type HistoryReader interface {
	ListTasks(ctx context.Context, limit int) ([]store.TaskRecord, error)
	GetTask(ctx context.Context, taskID string) (store.TaskRecord, error)
	GetEventsByTask(ctx context.Context, taskID string) ([]store.TaskEvent, error)
}

// Arguments encapsulates IO writers injected from the host process.
type Arguments struct {
	OutWriter io.Writer
	ErrWriter io.Writer
}

// Dependencies captures the collaborators for the CLI.
type Dependencies struct {
	Launcher        TaskLauncher
	History         HistoryReader // nil when the journal store is disabled
	ServerFactory   func(listen string) (WebhookServer, error)
	Args            Arguments
	DefaultListen   string
	DefaultProvider string
	Version         string
}

// NewRootCommand constructs the root Cobra command.
func NewRootCommand(deps Dependencies) *cobra.Command {
	versionString := deps.Version
	if versionString == "" {
		versionString = "v0.0.0"
	}

	root := &cobra.Command{
		Use:   "review-agent",
		Short: "GitHub webhook driven coding agent",
	}
	root.SilenceUsage = true
	root.SilenceErrors = true

	outWriter := deps.Args.OutWriter
	if outWriter == nil {
		outWriter = os.Stdout
	}
	errWriter := deps.Args.ErrWriter
	if errWriter == nil {
		errWriter = os.Stderr
	}
	root.SetOut(outWriter)
	root.SetErr(errWriter)

	root.AddCommand(serveCommand(deps.ServerFactory, deps.DefaultListen))
	root.AddCommand(runCommand(deps.Launcher, deps.DefaultProvider))
	root.AddCommand(historyCommand(deps.History))

	var showVersion bool
	root.PersistentFlags().BoolVarP(&showVersion, "version", "v", false, "Show version and exit")
	versionHandler := func(cmd *cobra.Command, args []string) error {
		if showVersion {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), versionString)
			return ErrVersionRequested
		}
		return nil
	}
	root.PersistentPreRunE = versionHandler
	root.PreRunE = versionHandler
	root.RunE = func(cmd *cobra.Command, args []string) error {
		if err := versionHandler(cmd, args); err != nil {
			return err
		}
		return cmd.Help()
	}

	return root
}

// serveCommand creates the serve subcommand. The server is constructed
// lazily so that a missing webhook secret only fails this command, not
// run or history.
func serveCommand(factory func(listen string) (WebhookServer, error), defaultListen string) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the GitHub webhook endpoint until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if factory == nil {
				return errors.New("serving is not configured")
			}
			server, err := factory(listen)
			if err != nil {
				return err
			}

			errCh := make(chan error, 1)
			go func() { errCh <- server.Start() }()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-cmd.Context().Done():
			}

			if err := server.Stop(); err != nil {
				return fmt.Errorf("shutdown webhook server: %w", err)
			}
			if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", defaultListen, "Address to listen on")

	return cmd
}

// runCommand creates the run subcommand for launching a single task from
// the terminal. Unlike the webhook path it waits for the task to finish
// and reports the terminal state through the exit code.
func runCommand(launcher TaskLauncher, defaultProvider string) *cobra.Command {
	var kind string
	var providerName string
	var repository string
	var branch string
	var number int
	var title string
	var body string
	var comment string
	var author string

	if defaultProvider == "" {
		defaultProvider = string(domain.ProviderAuto)
	}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single task and wait for it to finish",
		RunE: func(cmd *cobra.Command, args []string) error {
			if launcher == nil {
				return errors.New("task launching is not configured")
			}

			taskKind, err := domain.ParseTaskKind(kind)
			if err != nil {
				return err
			}
			identity, err := domain.ParseProviderIdentity(providerName)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			sv, err := launcher.Launch(ctx, domain.Task{
				Kind:       taskKind,
				Repository: repository,
				Branch:     branch,
				Number:     number,
				Title:      title,
				Body:       body,
				Comment:    comment,
				Author:     author,
			}, identity)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "task %s started with provider %s\n", sv.TaskID(), sv.Provider())

			select {
			case <-ctx.Done():
				// The signal registry cleans up the task; wait for it.
				<-sv.Done()
			case <-sv.Done():
			}

			switch outcome := sv.Outcome(); outcome {
			case domain.TaskStateCompleted:
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "task %s completed\n", sv.TaskID())
				return nil
			case "":
				return fmt.Errorf("task %s interrupted", sv.TaskID())
			default:
				return fmt.Errorf("task %s %s", sv.TaskID(), outcome)
			}
		},
	}

	cmd.Flags().StringVar(&kind, "kind", string(domain.TaskKindReview), "Task kind (review, fix, respond)")
	cmd.Flags().StringVar(&providerName, "provider", defaultProvider, "Provider to use (claude, gemini, auto)")
	cmd.Flags().StringVar(&repository, "repository", "", "Repository as owner/repo; empty runs in a bare workspace")
	cmd.Flags().StringVar(&branch, "branch", "", "Branch to check out after cloning")
	cmd.Flags().IntVar(&number, "number", 0, "Pull request or issue number")
	cmd.Flags().StringVar(&title, "title", "", "Pull request or issue title")
	cmd.Flags().StringVar(&body, "body", "", "Pull request or issue body")
	cmd.Flags().StringVar(&comment, "comment", "", "Comment body for respond tasks")
	cmd.Flags().StringVar(&author, "author", "", "Author of the triggering event")

	return cmd
}

// historyCommand creates the history subcommand backed by the journal store.
func historyCommand(history HistoryReader) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [task-id]",
		Short: "Show recent tasks from the journal",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if history == nil {
				return errors.New("the task journal is disabled; enable store in the configuration to use history")
			}

			ctx := cmd.Context()
			if len(args) == 1 {
				return printTaskDetail(ctx, cmd.OutOrStdout(), history, args[0])
			}
			return printTaskList(ctx, cmd.OutOrStdout(), history, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of tasks to list")

	return cmd
}

func printTaskList(ctx context.Context, out io.Writer, history HistoryReader, limit int) error {
	tasks, err := history.ListTasks(ctx, limit)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		_, _ = fmt.Fprintln(out, "no tasks recorded")
		return nil
	}

	titleCaser := cases.Title(language.English)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TASK\tKIND\tPROVIDER\tSTATE\tRECEIVED\tREPOSITORY")
	for _, t := range tasks {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.TaskID,
			titleCaser.String(t.Kind),
			t.Provider,
			t.State,
			t.ReceivedAt.Format("2006-01-02 15:04:05"),
			t.Repository,
		)
	}
	return w.Flush()
}

func printTaskDetail(ctx context.Context, out io.Writer, history HistoryReader, taskID string) error {
	record, err := history.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	events, err := history.GetEventsByTask(ctx, taskID)
	if err != nil {
		return err
	}

	titleCaser := cases.Title(language.English)
	_, _ = fmt.Fprintf(out, "Task:       %s\n", record.TaskID)
	_, _ = fmt.Fprintf(out, "Kind:       %s\n", titleCaser.String(record.Kind))
	if record.Repository != "" {
		_, _ = fmt.Fprintf(out, "Repository: %s\n", record.Repository)
	}
	if record.Branch != "" {
		_, _ = fmt.Fprintf(out, "Branch:     %s\n", record.Branch)
	}
	_, _ = fmt.Fprintf(out, "Provider:   %s\n", record.Provider)
	if record.Command != "" {
		_, _ = fmt.Fprintf(out, "Command:    %s\n", record.Command)
	}
	_, _ = fmt.Fprintf(out, "State:      %s\n", record.State)
	_, _ = fmt.Fprintf(out, "Received:   %s\n", record.ReceivedAt.Format("2006-01-02 15:04:05"))

	if len(events) == 0 {
		return nil
	}
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, "Events:")
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, event := range events {
		_, _ = fmt.Fprintf(w, "  %s\t%s\t%s\n",
			event.Timestamp.Format("2006-01-02 15:04:05"),
			event.State,
			event.Detail,
		)
	}
	return w.Flush()
}
