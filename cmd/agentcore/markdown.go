package main

import "github.com/charmbracelet/glamour"

// renderMarkdown renders md for terminal display, auto-detecting a dark or
// light background. Callers should fall back to the raw markdown if this
// returns an error (glamour needs a real terminal to size itself against).
func renderMarkdown(md string) (string, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return "", err
	}
	return renderer.Render(md)
}
