package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/template"
	"time"

	"github.com/Masterminds/sprig"
	"github.com/spf13/cobra"

	"github.com/roach88/sushid/internal/rpc"
)

// DefaultURL is the control endpoint of a local server.
const DefaultURL = "ws://localhost:19019"

// CallOptions holds flags for the call command.
type CallOptions struct {
	*RootOptions
	URL      string
	Params   string
	Template string
	Timeout  time.Duration
}

// NewCallCommand creates the call command.
func NewCallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "call <method>",
		Short: "Call one method on a running server",
		Long: `Call one method on a running server and print the result.

--template renders the result with Go text/template and the sprig
function library; the result is available as dot.

Examples:
  sushid call GetTempo
  sushid call SetTempo --params '{"tempo":125}'
  sushid call GetTracks --template '{{range .}}{{.id}} {{.name | upper}}{{"\n"}}{{end}}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", DefaultURL, "server WebSocket URL")
	cmd.Flags().StringVar(&opts.Params, "params", "", "keyword arguments as a JSON object")
	cmd.Flags().StringVar(&opts.Template, "template", "", "render the result with a text/template")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 5*time.Second, "overall call timeout")

	return cmd
}

func runCall(opts *CallOptions, method string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	params, err := parseParams(opts.Params)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --params", err)
	}
	var tmpl *template.Template
	if opts.Template != "" {
		tmpl, err = parseTemplate("call", opts.Template)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --template", err)
		}
	}

	ctx, cancel := context.WithTimeout(commandContext(cmd), opts.Timeout)
	defer cancel()

	client, err := rpc.Dial(ctx, opts.URL)
	if err != nil {
		_ = formatter.Error(ErrCodeConnect, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to connect", err)
	}
	defer client.Close()

	formatter.VerboseLog("-> %s %s", method, params)
	var result json.RawMessage
	if err := client.Call(ctx, method, params, &result); err != nil {
		_ = formatter.Error(ErrCodeCallFailed, err.Error(), errorDetails(err))
		return WrapExitError(ExitFailure, fmt.Sprintf("%s failed", method), err)
	}

	return printResult(formatter, tmpl, result)
}

// parseParams accepts an empty string or a JSON object.
func parseParams(s string) (json.RawMessage, error) {
	if s == "" {
		return nil, nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, fmt.Errorf("params must be a JSON object: %w", err)
	}
	return json.RawMessage(s), nil
}

func parseTemplate(name, text string) (*template.Template, error) {
	return template.New(name).Funcs(sprig.TxtFuncMap()).Parse(text)
}

// printResult writes a call result through the template, as a JSON
// envelope, or indented.
func printResult(f *OutputFormatter, tmpl *template.Template, result json.RawMessage) error {
	var v any
	if len(result) > 0 {
		if err := json.Unmarshal(result, &v); err != nil {
			return WrapExitError(ExitFailure, "server returned invalid JSON", err)
		}
	}

	switch {
	case tmpl != nil:
		if err := tmpl.Execute(f.Writer, v); err != nil {
			return WrapExitError(ExitFailure, "template failed", err)
		}
		return nil
	case f.JSON():
		return f.Response(v, nil)
	default:
		return writeIndented(f.Writer, result)
	}
}

func writeIndented(w io.Writer, raw json.RawMessage) error {
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}

// errorDetails exposes the JSON-RPC error code and kind of a failed call.
func errorDetails(err error) any {
	var eo *rpc.ErrorObject
	if !errors.As(err, &eo) {
		return nil
	}
	details := map[string]any{"rpc_code": eo.Code}
	if eo.Data != nil {
		details["kind"] = string(eo.Data.Kind)
	}
	return details
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
