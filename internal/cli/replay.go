package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/sushid/internal/host"
	"github.com/roach88/sushid/internal/rpc"
	"github.com/roach88/sushid/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Session  string
	URL      string
	Config   string
	DryRun   bool
}

// ReplayEntry is the outcome of one replayed call.
type ReplayEntry struct {
	Seq    int64  `json:"seq"`
	Method string `json:"method"`
	Params string `json:"params"`
	Error  string `json:"error,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Session string        `json:"session"`
	Target  string        `json:"target"`
	Calls   []ReplayEntry `json:"calls"`
	Applied int           `json:"applied"`
	Failed  int           `json:"failed"`
	Skipped int           `json:"skipped"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-apply the state changes of a journaled session",
		Long: `Re-apply the successful state-changing calls of a journaled session,
in the order the engine applied them.

With --url the calls are sent to a running server. Without it they are
applied to an in-process engine built from --config (or the default
configuration) and the final transport state is printed. Read-only calls
are skipped.

Exit codes:
  0 - Every call was applied
  1 - One or more calls failed
  2 - Command error (journal not found, server unreachable, etc.)

Examples:
  sushid replay --db ./sushi.db --session 0190...
  sushid replay --db ./sushi.db --session 0190... --url ws://localhost:19019
  sushid replay --db ./sushi.db --session 0190... --dry-run`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the journal database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session to replay (required)")
	_ = cmd.MarkFlagRequired("session")
	cmd.Flags().StringVar(&opts.URL, "url", "", "replay against a running server")
	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "configuration for in-process replay")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "list the calls without applying them")

	return cmd
}

// caller applies one call and discards its result.
type caller func(ctx context.Context, method string, params json.RawMessage) error

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	st, err := openJournal(formatter, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	calls, err := st.ReplayCalls(ctx, opts.Session)
	if err != nil {
		_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read session", err)
	}

	cfg, _, err := loadConfig(opts.Config)
	if err != nil {
		_ = formatter.Error(loadErrorCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	h, err := host.Build(cfg, host.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	if err != nil {
		_ = formatter.Error(ErrCodeConfigTopology, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to build engine", err)
	}

	result := ReplayResult{Session: opts.Session, Target: "in-process", Calls: make([]ReplayEntry, 0, len(calls))}

	var apply caller
	switch {
	case opts.DryRun:
		result.Target = "dry-run"
	case opts.URL != "":
		result.Target = opts.URL
		client, err := rpc.Dial(ctx, opts.URL)
		if err != nil {
			_ = formatter.Error(ErrCodeConnect, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to connect", err)
		}
		defer client.Close()
		apply = func(ctx context.Context, method string, params json.RawMessage) error {
			return client.Call(ctx, method, params, nil)
		}
	default:
		h.Engine.SetReady(true)
		go func() { _ = h.Engine.Run(ctx) }()
		apply = func(ctx context.Context, method string, params json.RawMessage) error {
			_, err := h.Table.Dispatch(ctx, method, params)
			return err
		}
	}

	for _, c := range calls {
		if h.Table.Has(c.Method) && !h.Table.Mutates(c.Method) {
			result.Skipped++
			continue
		}
		entry := ReplayEntry{Seq: c.Seq, Method: c.Method, Params: string(c.Params)}
		if apply != nil {
			formatter.VerboseLog("-> %s %s", c.Method, c.Params)
			if err := apply(ctx, c.Method, c.Params); err != nil {
				entry.Error = err.Error()
				result.Failed++
			} else {
				result.Applied++
			}
		}
		result.Calls = append(result.Calls, entry)
	}

	if formatter.JSON() {
		var cliErr *CLIError
		if result.Failed > 0 {
			cliErr = &CLIError{Code: ErrCodeCallFailed, Message: fmt.Sprintf("%d calls failed", result.Failed)}
		}
		if err := formatter.Response(result, cliErr); err != nil {
			return err
		}
	} else {
		outputReplayText(formatter, result, opts.DryRun)
		if opts.URL == "" && !opts.DryRun {
			printTransport(ctx, formatter, h)
		}
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d replayed calls failed", result.Failed))
	}
	return nil
}

func outputReplayText(f *OutputFormatter, result ReplayResult, dryRun bool) {
	w := f.Writer
	fmt.Fprintf(w, "Replaying session %s against %s\n", result.Session, result.Target)
	for _, c := range result.Calls {
		switch {
		case dryRun:
			fmt.Fprintf(w, "  [%d] %s %s\n", c.Seq, c.Method, c.Params)
		case c.Error != "":
			fmt.Fprintf(w, "✗ [%d] %s %s: %s\n", c.Seq, c.Method, c.Params, c.Error)
		default:
			fmt.Fprintf(w, "✓ [%d] %s %s\n", c.Seq, c.Method, c.Params)
		}
	}
	fmt.Fprintf(w, "\n%d applied, %d failed, %d read-only skipped\n", result.Applied, result.Failed, result.Skipped)
}

// printTransport shows the transport state the replay left behind.
func printTransport(ctx context.Context, f *OutputFormatter, h *host.Host) {
	for _, method := range []string{"GetTempo", "GetTimeSignature", "GetPlayingMode", "GetSyncMode"} {
		v, err := h.Table.Dispatch(ctx, method, nil)
		if err != nil {
			fmt.Fprintf(f.Writer, "  %s: %v\n", method, err)
			continue
		}
		fmt.Fprintf(f.Writer, "  %s: %v\n", method, v)
	}
}

func loadErrorCode(err error) string {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	return ErrCodeGeneric
}
