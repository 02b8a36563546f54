// ABOUTME: Template rendering functions for the web pages
// ABOUTME: Loads templates from the embedded filesystem and renders them

package server

import (
	"html/template"
	"net/http"

	"github.com/banrovegrie/makearjowork/internal/store"
)

type loginData struct {
	Title   string
	Error   string
	Success bool
	Email   string
}

type dashboardData struct {
	Title string
	User  *store.User
}

func (s *Server) renderLoginPage(w http.ResponseWriter, data loginData) {
	tmpl := template.Must(template.ParseFS(templateFS, "templates/base.html", "templates/login.html"))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		s.logger.Error("failed to render login page", "error", err)
	}
}

func (s *Server) renderDashboard(w http.ResponseWriter, data dashboardData) {
	tmpl := template.Must(template.ParseFS(templateFS, "templates/base.html", "templates/dashboard.html"))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		s.logger.Error("failed to render dashboard", "error", err)
	}
}
