package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/liveview/internal/harness"
	"github.com/roach88/liveview/internal/ir"
)

// RunReport is the JSON payload of the run command.
type RunReport struct {
	Scenario string          `json:"scenario"`
	Result   *harness.Result `json:"result"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run one view scenario and print its trace",
		Long: `Run a single scenario file against a fresh collection.

Prints every notification each view emitted, step by step, followed by
the final output of every attached view and the outcome of the
scenario's assertions.

Exit codes:
  0 - Scenario passed
  1 - A step or assertion failed
  2 - Command error (missing file, invalid scenario, bad setup)

Examples:
  liveview run ./scenarios/sorted_shift.yaml
  liveview run ./scenarios/sorted_shift.yaml --format json
  liveview run ./scenarios/sorted_shift.yaml --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runScenarioFile(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("scenario file not found: %s", path), err)
		}
		return f.Fail(ExitCommandError, ErrCodeInvalidInput, "failed to load scenario", err)
	}

	result, err := harness.Run(scenario)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidInput, "failed to set up scenario", err)
	}

	if f.JSON() {
		response := CLIResponse{Status: "ok", Data: RunReport{Scenario: scenario.Name, Result: result}}
		if !result.Pass {
			response.Status = "error"
			response.Error = &CLIError{
				Code:    ErrCodeTestFailed,
				Message: fmt.Sprintf("scenario %s failed", scenario.Name),
			}
		}
		if err := f.encode(response); err != nil {
			return err
		}
	} else {
		writeRunText(cmd.OutOrStdout(), scenario, result, opts.Verbose)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

// writeRunText renders a scenario result for humans. Metrics are shown
// only in verbose mode.
func writeRunText(w io.Writer, scenario *harness.Scenario, result *harness.Result, verbose bool) {
	fmt.Fprintf(w, "Scenario: %s\n", scenario.Name)
	fmt.Fprintf(w, "  %s\n", scenario.Description)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Trace (%d notifications):\n", len(result.Trace))
	for _, event := range result.Trace {
		fmt.Fprintf(w, "  [%d] step %d %s %s: %s\n", event.Seq, event.Step, event.Op, event.View, event.Event)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Outputs:")
	for _, id := range slices.Sorted(maps.Keys(result.Outputs)) {
		records := result.Outputs[id]
		fmt.Fprintf(w, "  %s (%d records)\n", id, len(records))
		for i, r := range records {
			fmt.Fprintf(w, "    %d %s\n", i, formatRecord(r))
		}
	}
	fmt.Fprintf(w, "Collection size: %d\n", result.Size)

	if verbose && len(result.Metrics) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Metrics:")
		writeMetrics(w, result.Metrics)
	}

	fmt.Fprintln(w)
	if result.Pass {
		fmt.Fprintf(w, "✓ %s passed\n", scenario.Name)
		return
	}
	fmt.Fprintf(w, "✗ %s failed\n", scenario.Name)
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

// writeMetrics prints a metrics summary sorted by series name.
func writeMetrics(w io.Writer, summary map[string]float64) {
	for _, name := range slices.Sorted(maps.Keys(summary)) {
		fmt.Fprintf(w, "  %s %g\n", name, summary[name])
	}
}

// formatRecord renders a record as canonical JSON.
func formatRecord(r map[string]any) string {
	data, err := ir.MarshalCanonical(r)
	if err != nil {
		return fmt.Sprintf("%v", r)
	}
	return string(data)
}
