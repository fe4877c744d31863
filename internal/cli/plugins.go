package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/sushid/internal/plugins"
)

// PluginParameter describes one parameter in the catalog listing.
type PluginParameter struct {
	Name    string  `json:"name"`
	Unit    string  `json:"unit,omitempty"`
	Type    string  `json:"type"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Default float64 `json:"default"`
}

// PluginEntry describes one built-in processor type.
type PluginEntry struct {
	UID        string            `json:"uid"`
	Label      string            `json:"label"`
	Parameters []PluginParameter `json:"parameters"`
	Properties []string          `json:"properties,omitempty"`
	Programs   []string          `json:"programs,omitempty"`
}

// NewPluginsCommand creates the plugins command.
func NewPluginsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List the built-in processor types",
		Long: `List the processor types a configuration can reference by uid,
with their parameters, string properties and programs.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlugins(rootOpts, cmd)
		},
	}
}

func catalogEntries() []PluginEntry {
	descs := plugins.List()
	entries := make([]PluginEntry, 0, len(descs))
	for _, d := range descs {
		e := PluginEntry{UID: d.UID, Label: d.Label, Parameters: make([]PluginParameter, 0, len(d.Parameters))}
		for _, p := range d.Parameters {
			lo, hi := p.Mapping.Domain()
			e.Parameters = append(e.Parameters, PluginParameter{
				Name: p.Name, Unit: p.Unit, Type: string(p.Type), Min: lo, Max: hi, Default: p.Default,
			})
		}
		for _, p := range d.Properties {
			e.Properties = append(e.Properties, p.Name)
		}
		for _, p := range d.Programs {
			e.Programs = append(e.Programs, p.Name)
		}
		entries = append(entries, e)
	}
	return entries
}

func runPlugins(opts *RootOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	entries := catalogEntries()

	if formatter.JSON() {
		return formatter.Response(entries, nil)
	}

	w := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\n", e.UID, e.Label)
		for _, p := range e.Parameters {
			fmt.Fprintf(w, "  %s\t%s\t[%g, %g]\tdefault %g %s\n", p.Name, p.Type, p.Min, p.Max, p.Default, p.Unit)
		}
		for _, p := range e.Properties {
			fmt.Fprintf(w, "  %s\tstring\t\t\n", p)
		}
		if len(e.Programs) > 0 {
			fmt.Fprintf(w, "  programs\t%d\t\t\n", len(e.Programs))
		}
	}
	return w.Flush()
}
