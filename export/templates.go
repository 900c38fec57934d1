package export

import (
	"bytes"
	"html/template"
	"time"
)

// pageData feeds the export page shell. ContentHTML is the editor's own
// output and is trusted as-is.
type pageData struct {
	Title       string
	ContentHTML template.HTML
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

var pageTemplate = template.Must(template.New("page").Parse(pageShell))

func renderPage(data pageData) (string, error) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const pageShell = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Georgia, serif; line-height: 1.6; max-width: 760px; margin: 2rem auto; color: #1a1a1a; }
    h1.doc-title { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.85em; margin-top: 3rem; border-top: 1px solid #ddd; padding-top: 0.5rem; }
    blockquote { border-left: 3px solid #ccc; margin-left: 0; padding-left: 1rem; color: #444; }
  </style>
</head>
<body>
  <h1 class="doc-title">{{.Title}}</h1>
  <div>{{.ContentHTML}}</div>
  <div class="meta">Created {{.CreatedAt.Format "Jan 2, 2006 15:04"}} · Updated {{.UpdatedAt.Format "Jan 2, 2006 15:04"}}</div>
</body>
</html>`
