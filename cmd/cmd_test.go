package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	docerrors "github.com/conneroisu/tagdoc/internal/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// testCommand returns a command writing to buffers, with global flag state
// and viper reset.
func testCommand(t *testing.T) (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()

	viper.Reset()
	viper.Set("log.level", "error")

	renderFile, renderData, renderSet = "", "", nil
	renderAppend, renderBench = false, false
	inspectFormat = "tree"
	versionFormat, versionShort = "text", false

	var stdout, stderr bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	return cmd, &stdout, &stderr
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPlaceholderFlag(t *testing.T) {
	var p placeholderFlag
	assert.Equal(t, "", p.String())
	assert.Equal(t, "name=value", p.Type())

	require.NoError(t, p.Set("title=Home"))
	require.NoError(t, p.Set("query=a=b"))
	require.NoError(t, p.Set(" empty ="))
	assert.Equal(t, placeholderFlag{"title": "Home", "query": "a=b", "empty": ""}, p)
	assert.Equal(t, "empty=,query=a=b,title=Home", p.String())

	assert.Error(t, p.Set("novalue"))
	assert.Error(t, p.Set("=x"))
}

func TestRenderFile(t *testing.T) {
	cmd, stdout, _ := testCommand(t)
	dir := t.TempDir()

	renderFile = writeFile(t, dir, "page.html",
		`<core:addtaglib class="ExpressionEvaluationTag" prefix="dyn" name="expr"/>`+
			`<h1><html:placeholder name="title"/></h1><p><dyn:expr expression="page['intro']"/></p>`)
	renderData = writeFile(t, dir, "page.yaml", "page:\n  intro: Hello there\n")
	require.NoError(t, renderSet.Set("title=Home"))

	require.NoError(t, runRender(cmd, nil))
	assert.Equal(t, "<h1>Home</h1><p>Hello there</p>", stdout.String())
}

func TestRenderAppend(t *testing.T) {
	cmd, stdout, _ := testCommand(t)
	renderFile = writeFile(t, t.TempDir(), "list.html", `<html:placeholder name="items">a</html:placeholder>`)
	require.NoError(t, renderSet.Set("items=,b"))
	renderAppend = true

	require.NoError(t, runRender(cmd, nil))
	assert.Equal(t, "a,b", stdout.String())
}

func TestRenderNamespace(t *testing.T) {
	cmd, stdout, _ := testCommand(t)
	root := t.TempDir()
	writeFile(t, root, "site/main.html", `main:<core:importdesign namespace="VENDOR\site" template="part"/>`)
	writeFile(t, root, "site/part.html", `part`)
	viper.Set("templates.vendors", map[string]string{"VENDOR": root})

	require.NoError(t, runRender(cmd, []string{`VENDOR\site`, "main"}))
	assert.Equal(t, "main:part", stdout.String())
}

func TestRenderBench(t *testing.T) {
	cmd, stdout, stderr := testCommand(t)
	renderFile = writeFile(t, t.TempDir(), "page.html", `plain`)
	renderBench = true

	require.NoError(t, runRender(cmd, nil))
	assert.Equal(t, "plain", stdout.String())
	assert.Contains(t, stderr.String(), "Benchmark")
	assert.Contains(t, stderr.String(), "parse")
	assert.Contains(t, stderr.String(), "transform")
	assert.Contains(t, stderr.String(), "total")
}

func TestRenderErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		cmd, _, _ := testCommand(t)
		renderFile = filepath.Join(t.TempDir(), "missing.html")
		err := runRender(cmd, nil)
		require.Error(t, err)
		assert.Equal(t, docerrors.ErrorTypeIO, docerrors.TypeOf(err))
	})

	t.Run("invalid data", func(t *testing.T) {
		cmd, _, _ := testCommand(t)
		dir := t.TempDir()
		renderFile = writeFile(t, dir, "page.html", `x`)
		renderData = writeFile(t, dir, "data.yaml", "- a list\n- not a mapping\n")
		err := runRender(cmd, nil)
		require.Error(t, err)
		assert.True(t, docerrors.IsParseError(err))
	})

	t.Run("unknown controller", func(t *testing.T) {
		cmd, _, _ := testCommand(t)
		renderFile = writeFile(t, t.TempDir(), "page.html", `<@controller class="App\Page" @>x`)
		err := runRender(cmd, nil)
		require.Error(t, err)
		assert.True(t, docerrors.IsInvalidArgument(err))
	})

	t.Run("invalid configuration", func(t *testing.T) {
		cmd, _, _ := testCommand(t)
		viper.Set("log.format", "xml")
		renderFile = writeFile(t, t.TempDir(), "page.html", `x`)
		assert.Error(t, runRender(cmd, nil))
	})
}

func TestRenderArgs(t *testing.T) {
	testCommand(t)
	assert.Error(t, renderCmd.Args(renderCmd, []string{"VENDOR"}))
	assert.NoError(t, renderCmd.Args(renderCmd, []string{"VENDOR", "main"}))

	renderFile = "page.html"
	assert.Error(t, renderCmd.Args(renderCmd, []string{"VENDOR", "main"}))
	assert.NoError(t, renderCmd.Args(renderCmd, nil))
}

const inspectTemplate = `<@controller class="App\Page" @>
<html:template name="row"><html:placeholder name="cell"/></html:template>
<html:placeholder name="title"/>`

func TestInspectTree(t *testing.T) {
	cmd, stdout, _ := testCommand(t)
	path := writeFile(t, t.TempDir(), "page.html", inspectTemplate)

	require.NoError(t, runInspect(cmd, []string{path}))
	out := stdout.String()
	assert.Contains(t, out, "Document")
	assert.Contains(t, out, `controller=App\Page`)
	assert.Contains(t, out, "<html:template> TemplateTag")
	assert.Contains(t, out, "<html:placeholder> PlaceHolderTag")
	assert.Contains(t, out, `name="cell"`)
}

func TestInspectYAML(t *testing.T) {
	cmd, stdout, _ := testCommand(t)
	inspectFormat = "yaml"
	path := writeFile(t, t.TempDir(), "page.html", inspectTemplate)

	require.NoError(t, runInspect(cmd, []string{path}))

	var info nodeInfo
	require.NoError(t, yaml.Unmarshal(stdout.Bytes(), &info))
	assert.Equal(t, "Document", info.Kind)
	assert.Equal(t, `App\Page`, info.Controller)
	require.Len(t, info.Children, 2)
	assert.Equal(t, "html:template", info.Children[0].Tag)
	assert.Equal(t, map[string]string{"name": "row"}, info.Children[0].Attributes)
	require.Len(t, info.Children[0].Children, 1)
	assert.Equal(t, "PlaceHolderTag", info.Children[0].Children[0].Kind)
}

func TestInspectErrors(t *testing.T) {
	cmd, _, _ := testCommand(t)
	inspectFormat = "json"
	assert.Error(t, runInspect(cmd, []string{"page.html"}))

	cmd, _, _ = testCommand(t)
	path := writeFile(t, t.TempDir(), "bad.html", `<html:template name="x">`)
	err := runInspect(cmd, []string{path})
	require.Error(t, err)
	assert.True(t, docerrors.IsParseError(err))
}

func TestVersionCommand(t *testing.T) {
	cmd, stdout, _ := testCommand(t)
	require.NoError(t, runVersionCommand(cmd, nil))
	assert.Contains(t, stdout.String(), "tagdoc")
	assert.Contains(t, stdout.String(), "Go: ")

	cmd, stdout, _ = testCommand(t)
	versionFormat = "json"
	require.NoError(t, runVersionCommand(cmd, nil))
	var info map[string]interface{}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &info))
	assert.Contains(t, info, "version")
	assert.Contains(t, info, "go_version")

	cmd, _, _ = testCommand(t)
	versionFormat = "xml"
	assert.Error(t, runVersionCommand(cmd, nil))
}

func TestTagsCommand(t *testing.T) {
	cmd, stdout, _ := testCommand(t)
	require.NoError(t, runTags(cmd, nil))
	out := stdout.String()
	assert.Contains(t, out, "Default taglibs")
	assert.Contains(t, out, "<html:placeholder> PlaceHolderTag")
	assert.Contains(t, out, "<core:importdesign> ImportTemplateTag")
	assert.Contains(t, out, "ExpressionEvaluationTag")
	assert.Contains(t, out, "Controllers\n  none")

	cmd, stdout, _ = testCommand(t)
	viper.Set("templates.html_header", true)
	require.NoError(t, runTags(cmd, nil))
	assert.Contains(t, stdout.String(), "<htmlheader:addcss> AddStylesheetTag")
}
