package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/simctl/internal/harness"
)

// ScriptOptions holds flags for the script command.
type ScriptOptions struct {
	*RootOptions
	Database string
	Golden   string // golden transcript to compare against
	Update   bool   // rewrite the golden transcript
}

// ScriptResult is the JSON payload of the script command.
type ScriptResult struct {
	Name       string   `json:"name"`
	Pass       bool     `json:"pass"`
	Transcript []string `json:"transcript"`
	Registry   []string `json:"registry"`
	Errors     []string `json:"errors,omitempty"`
}

// NewScriptCommand creates the script command.
func NewScriptCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScriptOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "script <scenario.yaml>",
		Short: "Run a scripted session",
		Long: `Run a YAML action script in a fresh session and print its transcript.

The script's assertions are evaluated against the transcript and the final
table registry. With --golden the transcript is also compared against a
golden file; --update rewrites that file instead.

Exit codes:
  0 - Script passed
  1 - A step or assertion failed, or the golden file differs
  2 - Command error (unreadable script, database not opened, etc.)

Examples:
  simctl script ./scripts/registry.yaml
  simctl script ./scripts/table_data.yaml --db ./sim.db
  simctl script ./scripts/registry.yaml --golden ./golden/registry.golden --update`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database backing table data and table names")
	cmd.Flags().StringVar(&opts.Golden, "golden", "", "golden transcript file to compare against")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "rewrite the golden transcript")

	return cmd
}

func runScript(opts *ScriptOptions, path string, cmd *cobra.Command) error {
	if opts.Update && opts.Golden == "" {
		return NewExitError(ExitCommandError, "--update requires --golden")
	}

	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load script", err)
	}
	formatter.VerboseLog("loaded %s: %d steps, %d assertions", scenario.Name, len(scenario.Steps), len(scenario.Assertions))

	runOpts := harness.Options{Logger: logger}
	if opts.Database != "" {
		src, files, err := openBackends(opts.Database, logger)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer closeBackend(src, logger)
		defer closeBackend(files, logger)
		runOpts.Source = src
		runOpts.Files = files
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	result, err := harness.Run(ctx, scenario, runOpts)
	if err != nil {
		return WrapExitError(ExitFailure, "script execution failed", err)
	}

	if opts.Golden != "" {
		if err := checkGolden(opts, scenario.Name, result); err != nil {
			result.AddError(err.Error())
		}
	}

	if opts.Format == "json" {
		if err := formatter.Success(ScriptResult{
			Name:       scenario.Name,
			Pass:       result.Pass,
			Transcript: result.Transcript,
			Registry:   result.Registry,
			Errors:     result.Errors,
		}); err != nil {
			return err
		}
	} else {
		outputScriptText(cmd, scenario.Name, result)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("script %s failed", scenario.Name))
	}
	return nil
}

// checkGolden compares the snapshot with the golden file, or rewrites it
// when --update is set.
func checkGolden(opts *ScriptOptions, name string, result *harness.Result) error {
	snapshot := harness.Snapshot(name, result)

	if opts.Update {
		if err := os.MkdirAll(filepath.Dir(opts.Golden), 0755); err != nil {
			return fmt.Errorf("failed to create golden directory: %w", err)
		}
		if err := os.WriteFile(opts.Golden, snapshot, 0644); err != nil {
			return fmt.Errorf("failed to write golden file: %w", err)
		}
		return nil
	}

	want, err := os.ReadFile(opts.Golden)
	if err != nil {
		return fmt.Errorf("failed to read golden file: %w", err)
	}
	if !bytes.Equal(want, snapshot) {
		return fmt.Errorf("transcript does not match golden file %s (run with --update to regenerate)", opts.Golden)
	}
	return nil
}

func outputScriptText(cmd *cobra.Command, name string, result *harness.Result) {
	w := cmd.OutOrStdout()
	for _, msg := range result.Transcript {
		fmt.Fprintln(w, msg)
	}

	if result.Pass {
		fmt.Fprintf(w, "✓ %s (registry: %s)\n", name, strings.Join(result.Registry, ", "))
		return
	}
	fmt.Fprintf(w, "✗ %s\n", name)
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}
