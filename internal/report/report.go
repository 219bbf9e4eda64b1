// Package report renders plain-text run output (changelogs, run logs) into
// small standalone HTML pages that are shipped next to the artifacts.
package report

import (
	"bufio"
	"bytes"
	"fmt"
	"html/template"
	"os"
	"strings"

	"github.com/yuin/goldmark"
)

// Stylesheet keeps the output readable as a log.
const Stylesheet = `body {font-family:"Lucida Console", Monaco, monospace;font-size:0.9em;}`

// Document is a titled page with a heading and verbatim text lines.
type Document struct {
	Title  string
	Header string
	Lines  []string
}

var page = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>{{.CSS}}</style>
</head>
<body>
{{.Body}}</body>
</html>
`))

// Render converts doc to HTML. The heading goes through Markdown with its
// punctuation escaped; the lines are emitted as one preformatted block.
func Render(doc Document) ([]byte, error) {
	var src bytes.Buffer
	if doc.Header != "" {
		src.WriteString("# " + escapeInline(doc.Header) + "\n\n")
	}
	if len(doc.Lines) > 0 {
		fence := fenceFor(doc.Lines)
		src.WriteString(fence + "\n")
		for _, l := range doc.Lines {
			src.WriteString(l + "\n")
		}
		src.WriteString(fence + "\n")
	}

	var body bytes.Buffer
	if err := goldmark.Convert(src.Bytes(), &body); err != nil {
		return nil, fmt.Errorf("render %s: %w", doc.Title, err)
	}

	var out bytes.Buffer
	err := page.Execute(&out, struct {
		Title string
		CSS   template.CSS
		Body  template.HTML
	}{doc.Title, template.CSS(Stylesheet), template.HTML(body.String())}) //nolint:gosec // goldmark escapes the content
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", doc.Title, err)
	}
	return out.Bytes(), nil
}

// WriteFile renders doc into path.
func WriteFile(path string, doc Document) error {
	data, err := Render(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadLines returns the lines of a text file without line endings.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	return lines, sc.Err()
}

// fenceFor picks a backtick fence longer than any run inside lines.
func fenceFor(lines []string) string {
	longest := 0
	for _, l := range lines {
		run := 0
		for _, r := range l {
			if r == '`' {
				run++
				longest = max(longest, run)
			} else {
				run = 0
			}
		}
	}
	return strings.Repeat("`", max(3, longest+1))
}

func escapeInline(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < 128 && strings.ContainsRune("!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~", r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
