package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss/tree"
	docerrors "github.com/conneroisu/tagdoc/internal/errors"
	"github.com/conneroisu/tagdoc/internal/pagecontroller"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var inspectFormat string

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Print the node tree of a template",
	Long: `Parse a template file and print its node tree without rendering it.

Examples:
  tagdoc inspect page.html
  tagdoc inspect page.html --format yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringVarP(&inspectFormat, "format", "o", "tree", "Output format (tree, yaml)")
}

// nodeInfo is the serialisable form of a node.
type nodeInfo struct {
	Kind       string            `yaml:"kind"`
	Tag        string            `yaml:"tag,omitempty"`
	Controller string            `yaml:"controller,omitempty"`
	Attributes map[string]string `yaml:"attributes,omitempty"`
	Children   []nodeInfo        `yaml:"children,omitempty"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	if inspectFormat != "tree" && inspectFormat != "yaml" {
		return fmt.Errorf("unsupported format: %s (supported: tree, yaml)", inspectFormat)
	}

	_, _, eng, err := setup(cmd)
	if err != nil {
		return err
	}

	content, err := os.ReadFile(args[0])
	if err != nil {
		return docerrors.NewIOError("TEMPLATE_READ_FAILED", "cannot read "+args[0], err)
	}
	doc, err := eng.Parse(commandContext(cmd), string(content))
	if err != nil {
		return err
	}

	info := describe(doc)
	info.Controller = doc.ControllerClass()

	if inspectFormat == "yaml" {
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(info); err != nil {
			return err
		}
		return enc.Close()
	}

	writeTree(cmd.OutOrStdout(), info)
	return nil
}

func describe(n pagecontroller.Node) nodeInfo {
	info := nodeInfo{
		Kind: string(n.Kind()),
		Tag:  n.TagName(),
	}
	if attrs := n.Attributes(); attrs != nil && attrs.Len() > 0 {
		info.Attributes = make(map[string]string, attrs.Len())
		for _, name := range attrs.Names() {
			info.Attributes[name], _ = attrs.Get(name)
		}
	}
	for _, child := range n.Children() {
		info.Children = append(info.Children, describe(child))
	}
	return info
}

func writeTree(w io.Writer, info nodeInfo) {
	root := tree.Root(label(info)).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(mutedStyle)
	for _, child := range info.Children {
		root.Child(subtree(child))
	}
	fmt.Fprintln(w, root.String())
}

func subtree(info nodeInfo) any {
	if len(info.Children) == 0 {
		return label(info)
	}
	t := tree.Root(label(info))
	for _, child := range info.Children {
		t.Child(subtree(child))
	}
	return t
}

func label(info nodeInfo) string {
	var sb strings.Builder
	if info.Tag != "" {
		sb.WriteString(titleStyle.Render("<" + info.Tag + ">"))
		sb.WriteString(" ")
	}
	sb.WriteString(kindStyle.Render(info.Kind))
	if info.Controller != "" {
		sb.WriteString(mutedStyle.Render(" controller=" + info.Controller))
	}

	names := make([]string, 0, len(info.Attributes))
	for name := range info.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sb.WriteString(mutedStyle.Render(fmt.Sprintf(" %s=%q", name, info.Attributes[name])))
	}
	return sb.String()
}
