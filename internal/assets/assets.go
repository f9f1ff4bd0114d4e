// Package assets embeds the browser client
package assets

import (
	"embed"
	"fmt"
	"io/fs"
)

// Client file names, as served under /assets/.
const (
	ClientJSName  = "tinkerdeck-client.js"
	ClientCSSName = "tinkerdeck-client.css"
)

//go:embed client/*
var clientFS embed.FS

var contentTypes = map[string]string{
	ClientJSName:  "application/javascript; charset=utf-8",
	ClientCSSName: "text/css; charset=utf-8",
}

// ClientFS returns the embedded client files
func ClientFS() fs.FS {
	sub, err := fs.Sub(clientFS, "client")
	if err != nil {
		panic(err)
	}
	return sub
}

// GetClientJS returns the browser JavaScript
func GetClientJS() ([]byte, error) {
	return clientFS.ReadFile("client/" + ClientJSName)
}

// GetClientCSS returns the browser CSS
func GetClientCSS() ([]byte, error) {
	return clientFS.ReadFile("client/" + ClientCSSName)
}

// Get returns a client file and its content type.
func Get(name string) ([]byte, string, error) {
	ct, ok := contentTypes[name]
	if !ok {
		return nil, "", fmt.Errorf("unknown asset %q: %w", name, fs.ErrNotExist)
	}
	data, err := clientFS.ReadFile("client/" + name)
	if err != nil {
		return nil, "", err
	}
	return data, ct, nil
}
