package api

import (
	"embed"
	"html/template"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/shelfarr/booksearch/internal/search"
)

//go:embed templates/*.html
var templateFS embed.FS

// TemplateRenderer renders the embedded page templates for echo
type TemplateRenderer struct {
	templates *template.Template
}

// NewTemplateRenderer parses the embedded templates
func NewTemplateRenderer() *TemplateRenderer {
	return &TemplateRenderer{
		templates: template.Must(template.ParseFS(templateFS, "templates/*.html")),
	}
}

// Render implements echo.Renderer
func (t *TemplateRenderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return t.templates.ExecuteTemplate(w, name, data)
}

type indexData struct {
	Columns     []string
	RowsPerPage int
	WSPath      string
}

// index serves the live search page
func (s *Server) index(c echo.Context) error {
	return c.Render(http.StatusOK, "index.html", indexData{
		Columns:     search.Columns,
		RowsPerPage: search.RowsPerPage,
		WSPath:      "/ws",
	})
}
