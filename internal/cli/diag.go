package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"text/template"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/sushid/internal/rpc"
)

// DiagOptions holds flags for the diag command.
type DiagOptions struct {
	*RootOptions
	URL       string
	Timeout   time.Duration
	Track     string
	Synth     string
	Parameter string
	Sampler   string
	Property  string
	Template  string
}

// DiagEntry is the outcome of one call of the sweep.
type DiagEntry struct {
	Method string          `json:"method"`
	Params map[string]any  `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// DiagResult summarizes a sweep.
type DiagResult struct {
	Calls  []DiagEntry `json:"calls"`
	Failed int         `json:"failed"`
}

// NewDiagCommand creates the diag command.
func NewDiagCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DiagOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "diag",
		Short: "Exercise every control method against a running server",
		Long: `Issue every control method with reasonable arguments against a
running server and print each response. A failing call is reported and the
sweep continues.

Entity ids are resolved by name first; the defaults match the built-in
configuration.

Exit codes:
  0 - Every call succeeded
  1 - One or more calls failed
  2 - Server unreachable or the named entities do not exist

Examples:
  sushid diag
  sushid diag --url ws://10.0.0.2:19019 --format json
  sushid diag --template '{{.Method}}: {{if .Error}}{{.Error | quote}}{{else}}ok{{end}}'`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiag(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", DefaultURL, "server WebSocket URL")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "overall sweep timeout")
	cmd.Flags().StringVar(&opts.Track, "track", "analog_synth", "track to address")
	cmd.Flags().StringVar(&opts.Synth, "synth", "jx10", "processor with programs and parameters")
	cmd.Flags().StringVar(&opts.Parameter, "parameter", "VCF Freq", "parameter of --synth")
	cmd.Flags().StringVar(&opts.Sampler, "sampler", "sampler", "processor with a string property")
	cmd.Flags().StringVar(&opts.Property, "property", "sample_file", "string property of --sampler")
	cmd.Flags().StringVar(&opts.Template, "template", "", "render each entry with a text/template (sprig functions available)")

	return cmd
}

// diagTargets are the resolved ids the sweep addresses.
type diagTargets struct {
	trackName                                  string
	track, synth, parameter, sampler, property int
}

func runDiag(opts *DiagOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	var tmpl *template.Template
	if opts.Template != "" {
		var err error
		tmpl, err = parseTemplate("diag", opts.Template+"\n")
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

	targets, err := resolveTargets(ctx, client, opts)
	if err != nil {
		_ = formatter.Error(ErrCodeCallFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to resolve diagnostic targets", err)
	}
	formatter.VerboseLog("targets: track=%d synth=%d parameter=%d sampler=%d property=%d",
		targets.track, targets.synth, targets.parameter, targets.sampler, targets.property)

	result := DiagResult{Calls: []DiagEntry{}}
	for _, step := range diagSweep(targets) {
		entry := DiagEntry{Method: step.method, Params: step.params}
		var raw json.RawMessage
		var params any
		if step.params != nil {
			params = step.params
		}
		if err := client.Call(ctx, step.method, params, &raw); err != nil {
			entry.Error = err.Error()
			result.Failed++
		} else {
			entry.Result = raw
		}
		result.Calls = append(result.Calls, entry)

		switch {
		case tmpl != nil:
			if err := tmpl.Execute(formatter.Writer, entry); err != nil {
				return WrapExitError(ExitFailure, "template failed", err)
			}
		case !formatter.JSON():
			printDiagEntry(formatter, entry)
		}
	}

	if formatter.JSON() {
		var cliErr *CLIError
		if result.Failed > 0 {
			cliErr = &CLIError{Code: ErrCodeCallFailed, Message: fmt.Sprintf("%d call(s) failed", result.Failed)}
		}
		if err := formatter.Response(result, cliErr); err != nil {
			return err
		}
	} else if tmpl == nil {
		fmt.Fprintf(formatter.Writer, "\nDiagnostics: %d calls, %d failed\n", len(result.Calls), result.Failed)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d call(s) failed", result.Failed))
	}
	return nil
}

func printDiagEntry(f *OutputFormatter, e DiagEntry) {
	if e.Error != "" {
		fmt.Fprintf(f.Writer, "Error in rpc call %s: %s\n", e.Method, e.Error)
		return
	}
	fmt.Fprintf(f.Writer, "Response from %s:\n", e.Method)
	_ = writeIndented(f.Writer, e.Result)
}

func resolveTargets(ctx context.Context, c *rpc.Client, opts *DiagOptions) (diagTargets, error) {
	t := diagTargets{trackName: opts.Track}
	lookups := []struct {
		method string
		params map[string]any
		out    *int
	}{
		{"GetTrackId", map[string]any{"track_name": opts.Track}, &t.track},
		{"GetProcessorId", map[string]any{"processor_name": opts.Synth}, &t.synth},
		{"GetProcessorId", map[string]any{"processor_name": opts.Sampler}, &t.sampler},
	}
	for _, l := range lookups {
		if err := c.Call(ctx, l.method, l.params, l.out); err != nil {
			return t, fmt.Errorf("%s %v: %w", l.method, l.params, err)
		}
	}

	if err := c.Call(ctx, "GetParameterId", map[string]any{"processor_id": t.synth, "parameter_name": opts.Parameter}, &t.parameter); err != nil {
		return t, fmt.Errorf("GetParameterId %q: %w", opts.Parameter, err)
	}
	if err := c.Call(ctx, "GetPropertyId", map[string]any{"processor_id": t.sampler, "property_name": opts.Property}, &t.property); err != nil {
		return t, fmt.Errorf("GetPropertyId %q: %w", opts.Property, err)
	}
	return t, nil
}

type diagCall struct {
	method string
	params map[string]any
}

// diagSweep lists every control method with arguments valid for targets.
func diagSweep(t diagTargets) []diagCall {
	track := map[string]any{"track_id": t.track}
	synth := map[string]any{"processor_id": t.synth}
	param := map[string]any{"processor_id": t.synth, "parameter_id": t.parameter}
	prop := map[string]any{"processor_id": t.sampler, "property_id": t.property}
	with := func(base map[string]any, kv ...any) map[string]any {
		out := make(map[string]any, len(base)+len(kv)/2)
		for k, v := range base {
			out[k] = v
		}
		for i := 0; i+1 < len(kv); i += 2 {
			out[kv[i].(string)] = kv[i+1]
		}
		return out
	}

	return []diagCall{
		{"GetSamplerate", nil},
		{"GetPlayingMode", nil},
		{"SetPlayingMode", map[string]any{"mode": "PLAYING"}},
		{"GetSyncMode", nil},
		{"SetSyncMode", map[string]any{"mode": "INTERNAL"}},
		{"GetTempo", nil},
		{"SetTempo", map[string]any{"tempo": 125}},
		{"GetTimeSignature", nil},
		{"SetTimeSignature", map[string]any{"signature": map[string]any{"numerator": 4, "denominator": 4}}},
		{"GetTracks", nil},

		{"SendNoteOn", with(track, "note", 45, "channel", 0, "velocity", 0.5)},
		{"SendNoteOff", with(track, "note", 45, "channel", 0, "velocity", 0.5)},
		{"SendNoteAftertouch", with(track, "note", 45, "channel", 0, "value", 0.5)},
		{"SendAftertouch", with(track, "channel", 0, "value", 0.5)},
		{"SendPitchBend", with(track, "channel", 0, "value", 0.5)},
		{"SendModulation", with(track, "channel", 0, "value", 0.5)},

		{"GetTimingStatisticsEnabled", nil},
		{"SetTimingStatisticsEnabled", map[string]any{"enabled": true}},
		{"GetEngineTimings", nil},
		{"GetTrackTimings", track},
		{"GetProcessorTimings", synth},
		{"ResetAllTimings", nil},
		{"ResetTrackTimings", track},
		{"ResetProcessorTimings", synth},

		{"GetTrackId", map[string]any{"track_name": t.trackName}},
		{"GetTrackInfo", track},
		{"GetTrackProcessors", track},
		{"GetTrackParameters", track},

		{"GetAllProcessors", nil},
		{"GetProcessorInfo", synth},
		{"GetProcessorBypassState", synth},
		{"SetProcessorBypassState", with(synth, "value", true)},
		{"SetProcessorBypassState", with(synth, "value", false)},
		{"GetProcessorPrograms", synth},
		{"SetProcessorProgram", with(synth, "program", 1)},
		{"GetProcessorCurrentProgram", synth},
		{"GetProcessorCurrentProgramName", synth},
		{"GetProcessorProgramName", with(synth, "program", 1)},
		{"GetProcessorParameters", synth},
		{"GetProcessorProperties", map[string]any{"processor_id": t.sampler}},

		{"GetParameterInfo", param},
		{"GetParameterValue", param},
		{"GetParameterValueNormalised", param},
		{"GetParameterValueAsString", param},
		{"SetParameterValue", with(param, "value", 1000.0)},
		{"SetParameterValueNormalised", with(param, "value", 0.5)},
		{"GetPropertyInfo", prop},
		{"GetStringPropertyValue", prop},
		{"SetStringPropertyValue", with(prop, "value", "string")},
	}
}
