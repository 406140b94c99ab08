package server

import (
	"embed"
	"html/template"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templateFS embed.FS

// loadTemplates parses the embedded pages into r.
func loadTemplates(r *gin.Engine) {
	tmpl := template.Must(template.New("").ParseFS(templateFS, "templates/*.html"))
	r.SetHTMLTemplate(tmpl)
}

type loginPage struct {
	Title     string
	CSRFToken string
}

type registerPage struct {
	Title     string
	CSRFToken string
	Error     string
}

type authorizePage struct {
	Title       string
	ClientID    string
	ClientName  string
	RedirectURI string
	State       string
}

type dashboardPage struct {
	Title     string
	FirstName string
}
