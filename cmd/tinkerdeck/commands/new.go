package commands

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"text/template"
	"unicode"

	"github.com/spf13/cobra"
)

//go:embed all:templates
var templatesFS embed.FS

// Scaffolds under templates/, in the order --list prints them.
var validTemplates = []string{"markdown", "html"}

var templateDescriptions = map[string]string{
	"markdown": "Markdown deck, slides separated by --- lines",
	"html":     "HTML deck, one <section> per slide",
}

var newOpts struct {
	template string
	list     bool
}

var newCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a new deck from a template",
	Example: `  tinkerdeck new my-talk                  # markdown template
  tinkerdeck new my-talk --template=html  # HTML template
  tinkerdeck new --list                   # list available templates`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if newOpts.list {
			printTemplates(out)
			return nil
		}
		if len(args) < 1 {
			return fmt.Errorf("project name required\n\nRun 'tinkerdeck new --help' for more information")
		}
		return createProject(out, args[0], newOpts.template)
	},
}

func init() {
	newCmd.Flags().StringVarP(&newOpts.template, "template", "t", "markdown", "template type: "+strings.Join(validTemplates, ", "))
	newCmd.Flags().BoolVar(&newOpts.list, "list", false, "list available templates")
	rootCmd.AddCommand(newCmd)
}

func printTemplates(w io.Writer) {
	fmt.Fprintln(w, "Available templates:")
	fmt.Fprintln(w)
	for _, t := range validTemplates {
		fmt.Fprintf(w, "  %-10s %s\n", t, templateDescriptions[t])
	}
}

// createProject scaffolds a deck directory named projectName from the
// named template.
func createProject(out io.Writer, projectName, templateName string) error {
	if !slices.Contains(validTemplates, templateName) {
		return fmt.Errorf("unknown template: %s\n\nAvailable templates: %s", templateName, strings.Join(validTemplates, ", "))
	}
	switch {
	case projectName == "":
		return fmt.Errorf("project name cannot be empty")
	case strings.ContainsAny(projectName, " \t"):
		return fmt.Errorf("project name cannot contain spaces")
	}
	if _, err := os.Stat(projectName); !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("directory '%s' already exists", projectName)
	}

	src, err := fs.Sub(templatesFS, path.Join("templates", templateName))
	if err != nil {
		return err
	}
	base := filepath.Base(projectName)
	vars := scaffoldVars{Title: toTitle(base), ProjectName: base, TemplateName: templateName}

	written := 0
	err = fs.WalkDir(src, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		written++
		return renderScaffold(src, name, filepath.Join(projectName, filepath.FromSlash(name)), vars)
	})
	if err == nil && written == 0 {
		err = fmt.Errorf("template '%s' has no files", templateName)
	}
	if err != nil {
		_ = os.RemoveAll(projectName)
		return err
	}

	fmt.Fprintf(out, "✨ Created new %s deck: %s\n\n", templateName, projectName)
	fmt.Fprintln(out, "🚀 Next steps:")
	fmt.Fprintf(out, "   cd %s\n", projectName)
	fmt.Fprintln(out, "   tinkerdeck serve")
	return nil
}

type scaffoldVars struct {
	Title        string
	ProjectName  string
	TemplateName string
}

// renderScaffold executes one scaffold file into dst. Scaffolds use [[ ]]
// delimiters so decks can carry {{ }} through untouched.
func renderScaffold(src fs.FS, name, dst string, vars scaffoldVars) error {
	raw, err := fs.ReadFile(src, name)
	if err != nil {
		return fmt.Errorf("read scaffold %s: %w", name, err)
	}
	tmpl, err := template.New(name).Delims("[[", "]]").Parse(string(raw))
	if err != nil {
		return fmt.Errorf("parse scaffold %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return fmt.Errorf("render scaffold %s: %w", name, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, buf.Bytes(), 0o644)
}

// toTitle turns a directory name into a deck title: "my-talk" becomes
// "My Talk".
func toTitle(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == '-' || r == '_' || unicode.IsSpace(r)
	})
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
