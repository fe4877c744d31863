package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/sushid/internal/store"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	Database string
	Session  string
	Method   string
	Failed   bool
	Limit    int
}

// JournalSession is one row of the session listing.
type JournalSession struct {
	ID       string    `json:"id"`
	Remote   string    `json:"remote"`
	OpenedAt time.Time `json:"opened_at"`
	ClosedAt time.Time `json:"closed_at,omitzero"`
	Calls    int       `json:"calls"`
	Failed   int       `json:"failed"`
}

// JournalCall is one row of the call listing.
type JournalCall struct {
	Seq        int64     `json:"seq"`
	Method     string    `json:"method"`
	Params     string    `json:"params"`
	Outcome    string    `json:"outcome"`
	Message    string    `json:"message,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect a call journal",
		Long: `Inspect the journal written by serve --journal.

Without --session, every session is listed with its call counts. With
--session, the session's calls are listed in the order they were applied.

Examples:
  sushid journal --db ./sushi.db
  sushid journal --db ./sushi.db --session 0190... --failed`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the journal database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "list the calls of one session")
	cmd.Flags().StringVar(&opts.Method, "method", "", "only calls to this method")
	cmd.Flags().BoolVar(&opts.Failed, "failed", false, "only failed calls")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of calls (0 = all)")

	return cmd
}

// openJournal opens an existing journal. store.Open would create a new
// empty database for a mistyped path.
func openJournal(f *OutputFormatter, path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		_ = f.Error(ErrCodeNotFound, fmt.Sprintf("journal not found: %s", path), nil)
		return nil, WrapExitError(ExitCommandError, "journal not found", err)
	}
	st, err := store.Open(path)
	if err != nil {
		_ = f.Error(ErrCodeJournal, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	return st, nil
}

func runJournal(opts *JournalOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	st, err := openJournal(formatter, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	if opts.Session == "" {
		return listSessions(cmd, formatter, st)
	}
	return listCalls(cmd, formatter, st, opts)
}

func listSessions(cmd *cobra.Command, f *OutputFormatter, st *store.Store) error {
	ctx := commandContext(cmd)
	sessions, err := st.ReadSessions(ctx)
	if err != nil {
		_ = f.Error(ErrCodeJournal, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read sessions", err)
	}

	rows := make([]JournalSession, 0, len(sessions))
	for _, s := range sessions {
		sum, err := st.Summarize(ctx, s.ID)
		if err != nil {
			_ = f.Error(ErrCodeJournal, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to summarize session", err)
		}
		rows = append(rows, JournalSession{
			ID: s.ID, Remote: s.Remote, OpenedAt: s.OpenedAt, ClosedAt: s.ClosedAt,
			Calls: sum.Calls, Failed: sum.Failed,
		})
	}

	if f.JSON() {
		return f.Success(rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(f.Writer, "No sessions found in journal.")
		return nil
	}
	w := tabwriter.NewWriter(f.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tREMOTE\tOPENED\tCALLS\tFAILED\tSTATE")
	for _, r := range rows {
		state := "closed"
		if r.ClosedAt.IsZero() {
			state = "open"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n", r.ID, r.Remote, r.OpenedAt.Format(time.RFC3339), r.Calls, r.Failed, state)
	}
	return w.Flush()
}

func listCalls(cmd *cobra.Command, f *OutputFormatter, st *store.Store, opts *JournalOptions) error {
	calls, err := st.ReadCalls(commandContext(cmd), store.CallFilter{
		SessionID: opts.Session,
		Method:    opts.Method,
		Limit:     opts.Limit,
	})
	if err != nil {
		_ = f.Error(ErrCodeJournal, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read calls", err)
	}

	rows := make([]JournalCall, 0, len(calls))
	for _, c := range calls {
		if opts.Failed && c.OK() {
			continue
		}
		rows = append(rows, JournalCall{
			Seq: c.Seq, Method: c.Method, Params: string(c.Params),
			Outcome: c.Outcome, Message: c.Message, RecordedAt: c.RecordedAt,
		})
	}

	if f.JSON() {
		return f.Success(rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(f.Writer, "No calls found.")
		return nil
	}
	w := tabwriter.NewWriter(f.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tMETHOD\tOUTCOME\tPARAMS")
	for _, r := range rows {
		outcome := r.Outcome
		if r.Message != "" {
			outcome += ": " + r.Message
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.Seq, r.Method, outcome, r.Params)
	}
	return w.Flush()
}
