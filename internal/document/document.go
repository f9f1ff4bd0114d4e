// Package document loads deck documents from disk.
//
// HTML files are used as they are. Markdown files may start with YAML
// frontmatter; their body is rendered with goldmark (raw HTML allowed) and
// split into one <section> per slide at thematic breaks. A markdown body
// without breaks that brings its own <section> elements is kept as is.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/livetemplate/tinkerdeck"
	"github.com/livetemplate/tinkerdeck/pkg/dom"
)

// Frontmatter represents the YAML frontmatter at the top of a markdown deck.
type Frontmatter struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	// Incremental turns every list item into a step.
	Incremental bool `yaml:"incremental"`
	// Progress adds a progress bar to the generated page (default: true).
	Progress *bool `yaml:"progress"`
}

// ShowProgress reports whether the generated page gets a progress bar.
func (f *Frontmatter) ShowProgress() bool {
	return f == nil || f.Progress == nil || *f.Progress
}

// Deck is a loaded deck document.
type Deck struct {
	Name        string // slash-separated path inside the file system
	Title       string
	Frontmatter *Frontmatter // nil for HTML documents
	Doc         *dom.Document

	slideSelector    string
	progressSelector string
}

// Options selects the deck parts inside a document.
type Options struct {
	SlideSelector    string
	ProgressSelector string
}

func (o Options) withDefaults() Options {
	if o.SlideSelector == "" {
		o.SlideSelector = tinkerdeck.DefaultSlideSelector
	}
	return o
}

// IsDeckFile reports whether name has an extension Load understands.
func IsDeckFile(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".html", ".htm", ".md", ".markdown":
		return true
	}
	return false
}

// Load reads and parses the deck called name from fsys.
func Load(fsys fs.FS, name string, opts Options) (*Deck, error) {
	content, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, tinkerdeck.NewLoadError(name, "cannot read document").WithCause(err)
	}
	return Parse(name, content, opts)
}

// LoadFile reads a deck from the local file system.
func LoadFile(p string, opts Options) (*Deck, error) {
	d, err := Load(os.DirFS(filepath.Dir(p)), filepath.Base(p), opts)
	var le *tinkerdeck.LoadError
	if errors.As(err, &le) {
		le.File = p
	}
	return d, err
}

// Parse builds a deck from content; name decides how it is interpreted.
func Parse(name string, content []byte, opts Options) (*Deck, error) {
	opts = opts.withDefaults()
	d := &Deck{
		Name:             name,
		slideSelector:    opts.SlideSelector,
		progressSelector: opts.ProgressSelector,
	}

	source := content
	switch strings.ToLower(path.Ext(name)) {
	case ".md", ".markdown":
		fm, page, err := renderMarkdown(name, content)
		if err != nil {
			return nil, err
		}
		d.Frontmatter = fm
		source = page
	}

	doc, err := dom.Parse(bytes.NewReader(source))
	if err != nil {
		return nil, tinkerdeck.NewLoadError(name, "cannot parse HTML").WithCause(err)
	}
	d.Doc = doc

	d.Title = doc.Title()
	if d.Frontmatter != nil && d.Frontmatter.Title != "" {
		d.Title = d.Frontmatter.Title
	}
	if d.Title == "" {
		d.Title = strings.TrimSuffix(path.Base(name), path.Ext(name))
	}

	slides := doc.QueryAll(d.slideSelector)
	if len(slides) == 0 {
		return nil, tinkerdeck.NewLoadError(name, fmt.Sprintf("no element matches slide selector %q", d.slideSelector)).
			WithHint("Separate markdown slides with a --- line, or wrap HTML slides in <section>").
			WithCause(tinkerdeck.ErrNoSlides)
	}
	// Slide content sits in one wrapper element so themes can lay it out
	// independently of the slide box.
	for _, el := range slides {
		if n, ok := el.(*dom.Node); ok {
			n.WrapChildren("div", tinkerdeck.ClassWrapper)
		}
	}
	return d, nil
}

// SlideSelector returns the selector matching the deck's slides.
func (d *Deck) SlideSelector() string { return d.slideSelector }

// ProgressSelector returns the selector of the progress element, or "".
func (d *Deck) ProgressSelector() string { return d.progressSelector }

// SlideCount returns the number of slides in the document.
func (d *Deck) SlideCount() int {
	return len(d.Slides(d.Doc))
}

// Slides returns the slide elements of doc, which must be d.Doc or a clone
// of it. Content wrappers never count as slides, even when the selector
// matches them.
func (d *Deck) Slides(doc *dom.Document) []dom.Element {
	all := doc.QueryAll(d.slideSelector)
	slides := all[:0]
	for _, el := range all {
		if !el.HasClass(tinkerdeck.ClassWrapper) {
			slides = append(slides, el)
		}
	}
	return slides
}

// Progress returns the progress element of doc, or nil.
func (d *Deck) Progress(doc *dom.Document) dom.Element {
	if d.progressSelector == "" {
		return nil
	}
	if n := doc.Query(d.progressSelector); n != nil {
		return n
	}
	return nil
}

func renderMarkdown(name string, content []byte) (*Frontmatter, []byte, error) {
	content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))

	fm, remaining, err := extractFrontmatter(content)
	if err != nil {
		return nil, nil, tinkerdeck.NewLoadError(name, "invalid frontmatter").WithLine(1).WithCause(err)
	}

	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)

	doc := md.Parser().Parse(text.NewReader(remaining))

	var slides [][]ast.Node
	var current []ast.Node
	split := false
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if n.Kind() == ast.KindThematicBreak {
			split = true
			slides = append(slides, current)
			current = nil
			continue
		}
		current = append(current, n)
	}
	slides = append(slides, current)

	// A single markdown slide without author-supplied sections is still a
	// deck.
	if !split && !bytes.Contains(remaining, []byte("<section")) {
		split = true
	}

	if fm.Incremental {
		_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
			if entering && n.Kind() == ast.KindListItem {
				n.SetAttributeString("class", []byte(tinkerdeck.ClassStep))
			}
			return ast.WalkContinue, nil
		})
	}

	var body bytes.Buffer
	r := md.Renderer()
	for _, nodes := range slides {
		if split && len(nodes) == 0 {
			continue
		}
		if split {
			body.WriteString("<section>\n")
		}
		for _, n := range nodes {
			if err := r.Render(&body, remaining, n); err != nil {
				return nil, nil, tinkerdeck.NewLoadError(name, "failed to render markdown").WithCause(err)
			}
		}
		if split {
			body.WriteString("</section>\n")
		}
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>%s</title>\n", htmlEscape(fm.Title))
	page.WriteString("</head>\n<body>\n")
	if fm.ShowProgress() {
		page.WriteString("<progress class=\"deck-progress\"></progress>\n")
	}
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")

	return fm, page.Bytes(), nil
}

// extractFrontmatter extracts YAML frontmatter from the beginning of content.
// Returns the parsed frontmatter and the remaining content.
func extractFrontmatter(content []byte) (*Frontmatter, []byte, error) {
	if !bytes.HasPrefix(content, []byte("---\n")) {
		return &Frontmatter{}, content, nil
	}

	rest := content[4:]
	var yamlContent []byte
	switch {
	case bytes.HasPrefix(rest, []byte("---\n")):
		rest = rest[4:]
	default:
		endIdx := bytes.Index(rest, []byte("\n---\n"))
		if endIdx == -1 {
			if bytes.HasSuffix(rest, []byte("\n---")) {
				endIdx = len(rest) - 4
			} else {
				return nil, nil, fmt.Errorf("unclosed frontmatter")
			}
		}
		yamlContent = rest[:endIdx]
		rest = rest[min(len(rest), endIdx+5):]
	}

	var fm Frontmatter
	if err := yaml.Unmarshal(yamlContent, &fm); err != nil {
		return nil, nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &fm, rest, nil
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func htmlEscape(s string) string {
	return htmlEscaper.Replace(s)
}
