package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/weft/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter string
	Update bool
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult is the JSON output of the test command.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <path>",
		Short: "Run conformance scenarios",
		Long: `Run YAML scenarios against the counter program.

<path> is a scenario file or a directory of .yaml/.yml files. When a
golden/<name>.golden file sits next to a scenario, the recorded trace
must match it byte for byte. --update rewrites golden files instead.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (path not found, invalid scenario)

Examples:
  weft test ./scenarios
  weft test ./scenarios --filter 'deferred_*'
  weft test ./scenarios/increment.yaml --update`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "glob matched against scenario file names")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "rewrite golden files from the current traces")

	return cmd
}

func runTest(opts *TestOptions, path string, cmd *cobra.Command) error {
	out := newFormatter(cmd, opts.RootOptions)

	files, err := findScenarioFiles(path, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	if len(files) == 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("no scenarios found in %s", path))
	}

	result := TestResult{Scenarios: make([]ScenarioResult, 0, len(files))}
	for _, file := range files {
		out.VerboseLog("running %s", file)
		sr, err := runScenario(file, opts.Update)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("scenario %s", file), err)
		}
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}
	result.Total = len(result.Scenarios)

	if err := out.Success(result, func(w io.Writer) error {
		return writeTestText(w, result)
	}); err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", result.Failed, result.Total))
	}
	return nil
}

// findScenarioFiles returns path itself when it is a file, or the YAML
// files below it, filtered by base name.
func findScenarioFiles(path, filter string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(p)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			matched, err := filepath.Match(filter, filepath.Base(p))
			if err != nil {
				return fmt.Errorf("invalid filter: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, p)
		return nil
	})
	return files, err
}

func runScenario(file string, update bool) (ScenarioResult, error) {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return ScenarioResult{}, err
	}
	result, err := harness.Run(scenario)
	if err != nil {
		return ScenarioResult{}, err
	}

	sr := ScenarioResult{
		Name:   scenario.Name,
		File:   file,
		Pass:   result.Pass,
		Errors: result.Errors,
	}

	snapshot, err := harness.Snapshot(scenario, result)
	if err != nil {
		return ScenarioResult{}, err
	}
	golden := goldenFilePath(file, scenario.Name)
	if update {
		if err := os.MkdirAll(filepath.Dir(golden), 0o755); err != nil {
			return ScenarioResult{}, fmt.Errorf("create golden directory: %w", err)
		}
		if err := os.WriteFile(golden, snapshot, 0o644); err != nil {
			return ScenarioResult{}, fmt.Errorf("write golden file: %w", err)
		}
		return sr, nil
	}

	want, err := os.ReadFile(golden)
	switch {
	case os.IsNotExist(err):
		return sr, nil
	case err != nil:
		return ScenarioResult{}, fmt.Errorf("read golden file: %w", err)
	}
	if !bytes.Equal(bytes.TrimSpace(want), bytes.TrimSpace(snapshot)) {
		sr.Pass = false
		sr.Errors = append(sr.Errors, fmt.Sprintf("trace does not match %s", golden))
	}
	return sr, nil
}

// goldenFilePath maps dir/scenarios/x.yaml to dir/golden/<name>.golden and
// dir/x.yaml to dir/golden/<name>.golden.
func goldenFilePath(scenarioFile, name string) string {
	dir := filepath.Dir(scenarioFile)
	if filepath.Base(dir) == "scenarios" {
		dir = filepath.Dir(dir)
	}
	return filepath.Join(dir, "golden", name+".golden")
}

func writeTestText(w io.Writer, r TestResult) error {
	for _, s := range r.Scenarios {
		if s.Pass {
			fmt.Fprintf(w, "✓ %s\n", s.Name)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", s.Name)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "    %s\n", strings.TrimSpace(e))
		}
	}
	_, err := fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", r.Passed, r.Failed, r.Total)
	return err
}
