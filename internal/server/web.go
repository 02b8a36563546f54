// ABOUTME: Browser-facing handlers for login, magic-link redemption, and the dashboard
// ABOUTME: Renders embedded HTML templates

package server

import (
	"errors"
	"net/http"

	"github.com/banrovegrie/makearjowork/internal/auth"
)

// handleIndex sends clients to the dashboard; the dashboard's own
// middleware bounces anonymous visitors back to the login page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.renderLoginPage(w, loginData{Title: "Log in"})
}

// handleLogin accepts the email form and issues a magic link. The success
// page is shown even when the address is unknown, so login attempts don't
// enumerate accounts beyond the domain check.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")

	err := s.login.RequestLink(r.Context(), email)
	switch {
	case errors.Is(err, auth.ErrEmailRequired):
		s.renderLoginPage(w, loginData{Title: "Log in", Error: "Email is required"})
	case errors.Is(err, auth.ErrDomainNotAllowed):
		s.renderLoginPage(w, loginData{Title: "Log in", Error: "That email domain is not allowed"})
	case err != nil:
		s.logger.Error("magic link request failed", "error", err)
		s.renderLoginPage(w, loginData{Title: "Log in", Error: "Something went wrong, try again"})
	default:
		s.renderLoginPage(w, loginData{Title: "Log in", Success: true, Email: email})
	}
}

// handleAuth redeems a magic link and starts a session.
func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	_, session, err := s.login.Redeem(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrLinkInvalid) {
			s.renderLoginPage(w, loginData{Title: "Log in", Error: "Invalid or expired link"})
			return
		}
		s.logger.Error("magic link redeem failed", "error", err)
		s.renderLoginPage(w, loginData{Title: "Log in", Error: "Something went wrong, try again"})
		return
	}

	auth.SetSessionCookie(w, r, session, s.sessions.TTL())
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user := auth.FromContext(r.Context())
	s.renderDashboard(w, dashboardData{Title: "Make Arjo Work", User: user})
}
