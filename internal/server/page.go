package server

import (
	"errors"
	"html"
	"html/template"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/livetemplate/tinkerdeck"
	"github.com/livetemplate/tinkerdeck/internal/assets"
)

// DeckMetaName is the meta tag through which the client learns which deck
// file to open a session for.
const DeckMetaName = "tinkerdeck-deck"

// renderDeckPage returns the deck document with the client assets injected.
// Element ids are kept so patch ops can address them.
func renderDeckPage(route *Route) string {
	page := route.Deck.Doc.HTML()

	head := `<meta name="` + DeckMetaName + `" content="` + html.EscapeString(route.FilePath) + `">` +
		`<link rel="stylesheet" href="/assets/` + assets.ClientCSSName + `">`
	page = insertBefore(page, "</head>", head)
	page = insertBefore(page, "</body>", `<script src="/assets/`+assets.ClientJSName+`"></script>`)
	return page
}

// insertBefore inserts s before the last occurrence of tag, or appends it.
func insertBefore(page, tag, s string) string {
	i := strings.LastIndex(page, tag)
	if i < 0 {
		return page + s
	}
	return page[:i] + s + page[i:]
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<link rel="stylesheet" href="/assets/{{.CSS}}">
</head>
<body class="tinkerdeck-index">
<h1>{{.Title}}</h1>
{{if .Routes}}<ul class="decks">
{{range .Routes}}<li><a href="{{.Pattern}}">{{.Deck.Title}}</a> <small>{{.FilePath}} · {{.Deck.SlideCount}} slides</small></li>
{{end}}</ul>
{{else}}<p>No decks found. Add a .md or .html file to get started.</p>
{{end}}{{if .Failures}}<h2>Failed to load</h2>
<ul class="failures">
{{range .Failures}}<li><a href="{{.Pattern}}">{{.FilePath}}</a></li>
{{end}}</ul>
{{end}}</body>
</html>
`))

var errorTemplate = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.FilePath}}</title>
<link rel="stylesheet" href="/assets/{{.CSS}}">
</head>
<body class="tinkerdeck-error">
<pre>{{.Message}}</pre>
</body>
</html>
`))

func renderIndexPage(w io.Writer, title string, routes []*Route, failures []Failure, l *zap.Logger) {
	if title == "" {
		title = "Decks"
	}
	err := indexTemplate.Execute(w, map[string]interface{}{
		"Title":    title,
		"CSS":      assets.ClientCSSName,
		"Routes":   routes,
		"Failures": failures,
	})
	if err != nil {
		l.Warn("failed to render index", zap.Error(err))
	}
}

func renderErrorPage(w io.Writer, f *Failure, l *zap.Logger) {
	msg := f.Err.Error()
	var le *tinkerdeck.LoadError
	if errors.As(f.Err, &le) {
		msg = le.Format()
	}
	err := errorTemplate.Execute(w, map[string]interface{}{
		"FilePath": f.FilePath,
		"CSS":      assets.ClientCSSName,
		"Message":  msg,
	})
	if err != nil {
		l.Warn("failed to render error page", zap.Error(err))
	}
}
