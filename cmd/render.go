package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/conneroisu/tagdoc/internal/benchmark"
	docerrors "github.com/conneroisu/tagdoc/internal/errors"
	"github.com/conneroisu/tagdoc/internal/engine"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	renderFile   string
	renderData   string
	renderSet    placeholderFlag
	renderAppend bool
	renderBench  bool
)

var renderCmd = &cobra.Command{
	Use:   "render [namespace name]",
	Short: "Render a template to stdout",
	Long: `Render a template resolved through the configured vendor roots, or a
template file given with --file.

Top-level keys of the --data YAML file become document data readable by
expression tags and controllers. --set fills placeholders of the document.

Examples:
  tagdoc render VENDOR\site main
  tagdoc render VENDOR/site main --set title=Home --set lang=en
  tagdoc render -f page.html --data page.yaml --bench`,
	Args: func(cmd *cobra.Command, args []string) error {
		if renderFile != "" {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(2)(cmd, args)
	},
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVarP(&renderFile, "file", "f", "", "Render a template file instead of a namespace reference")
	renderCmd.Flags().StringVarP(&renderData, "data", "d", "", "YAML file whose top-level keys become document data")
	renderCmd.Flags().Var(&renderSet, "set", "Set a placeholder (repeatable)")
	renderCmd.Flags().BoolVar(&renderAppend, "append", false, "Append --set values to the placeholders' content")
	renderCmd.Flags().BoolVar(&renderBench, "bench", false, "Print the render timing report to stderr")
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, _, eng, err := setup(cmd)
	if err != nil {
		return err
	}

	data, err := loadData(renderData)
	if err != nil {
		return err
	}

	req := engine.RenderRequest{
		Data:         data,
		PlaceHolders: map[string]string(renderSet),
		Append:       renderAppend,
	}
	if renderBench {
		req.Timer = benchmark.New()
		req.Timer.SetCriticalTime(cfg.Benchmark.CriticalTime)
	}

	ctx := commandContext(cmd)
	var out string
	if renderFile != "" {
		content, readErr := os.ReadFile(renderFile)
		if readErr != nil {
			return docerrors.NewIOError("TEMPLATE_READ_FAILED", "cannot read "+renderFile, readErr)
		}
		out, err = eng.RenderString(ctx, string(content), req)
	} else {
		req.Namespace, req.Name = args[0], args[1]
		out, err = eng.Render(ctx, req)
	}
	if err != nil {
		return err
	}

	if _, err := io.WriteString(cmd.OutOrStdout(), out); err != nil {
		return err
	}
	if req.Timer != nil {
		printReport(cmd.ErrOrStderr(), req.Timer)
	}
	return nil
}

// loadData reads a YAML mapping. An empty path yields no data.
func loadData(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, docerrors.NewIOError("DATA_READ_FAILED", "cannot read data file "+path, err)
	}
	var data map[string]any
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, docerrors.NewParseError("INVALID_DATA", "data file must be a YAML mapping").
			WithCause(err).
			WithContext("file", path)
	}
	return data, nil
}

func printReport(w io.Writer, timer *benchmark.Timer) {
	fmt.Fprintln(w, titleStyle.Render("Benchmark"))
	for _, r := range timer.Report() {
		line := fmt.Sprintf("%s%-12s %10s", strings.Repeat("  ", r.Depth), r.Name, r.Duration)
		if r.Critical {
			line = criticalStyle.Render(line + "  critical")
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("total %s", timer.TotalTime())))
}
