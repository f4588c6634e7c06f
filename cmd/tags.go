package cmd

import (
	"fmt"
	"io"

	"github.com/conneroisu/tagdoc/internal/pagecontroller"
	"github.com/spf13/cobra"
)

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List the tags available to templates",
	Long: `List the taglibs every document starts with, the tag kinds
core:addtaglib can bind and the registered controllers.

Examples:
  tagdoc tags
  tagdoc tags --config tagdoc.yaml`,
	Args: cobra.NoArgs,
	RunE: runTags,
}

func init() {
	rootCmd.AddCommand(tagsCmd)
}

func runTags(cmd *cobra.Command, _ []string) error {
	_, _, eng, err := setup(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, titleStyle.Render("Default taglibs"))
	for _, b := range pagecontroller.DefaultTaglibs() {
		fmt.Fprintf(out, "  <%s:%s> %s\n", b.Prefix, b.Name, kindStyle.Render(string(b.Kind)))
	}

	fmt.Fprintln(out, titleStyle.Render("Tag kinds"))
	for _, kind := range pagecontroller.TagTypes() {
		fmt.Fprintf(out, "  %s\n", kindStyle.Render(string(kind)))
	}

	fmt.Fprintln(out, titleStyle.Render("Controllers"))
	writeList(out, eng.Controllers())
	return nil
}

func writeList(out io.Writer, items []string) {
	if len(items) == 0 {
		fmt.Fprintf(out, "  %s\n", mutedStyle.Render("none"))
		return
	}
	for _, item := range items {
		fmt.Fprintf(out, "  %s\n", item)
	}
}
