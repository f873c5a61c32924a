package web

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/kuitang/orangehrm-e2e/internal/auth"
	"github.com/kuitang/orangehrm-e2e/internal/obs"
)

// InvalidCredentialsMessage is the banner shown after a rejected login.
const InvalidCredentialsMessage = "Invalid credentials"

// PageData contains common data for all pages.
type PageData struct {
	Title string
	Error string
}

// LoginPageData contains data for the login page.
type LoginPageData struct {
	PageData
	Action       string
	HintUsername string
	HintPassword string
}

// MenuEntry is one sidebar link.
type MenuEntry struct {
	Label  string
	Route  string
	Active bool
}

// ModulePageData contains data for a module page.
type ModulePageData struct {
	PageData
	User      *auth.User
	Menu      []MenuEntry
	LogoutURL string
	Body      string
}

// HandleRoot handles GET / by sending the browser to the login page.
func (s *Server) HandleRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, LoginPath, http.StatusFound)
}

// HandleLoginPage handles GET /web/index.php/auth/login. A signed-in user
// goes straight to the dashboard.
func (s *Server) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	if id, err := auth.GetFromRequest(r); err == nil {
		if _, err := s.sessions.Validate(r.Context(), id); err == nil {
			http.Redirect(w, r, DashboardPath, http.StatusFound)
			return
		}
	}

	data := LoginPageData{
		PageData:     PageData{Title: "Login"},
		Action:       ValidatePath,
		HintUsername: DefaultUsername,
		HintPassword: DefaultPassword,
	}
	// Only a fixed message is shown; query text is never reflected.
	if r.URL.Query().Get("error") != "" {
		data.Error = InvalidCredentialsMessage
	}

	w.Header().Set("Cache-Control", "no-store")
	if err := s.renderer.Render(w, "login.html", data); err != nil {
		s.renderer.RenderError(w, http.StatusInternalServerError, "Failed to render page")
	}
}

// HandleValidate handles POST /web/index.php/auth/validate.
func (s *Server) HandleValidate(w http.ResponseWriter, r *http.Request) {
	log := obs.From(r.Context())
	if err := r.ParseForm(); err != nil {
		s.renderer.RenderError(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	username := r.PostForm.Get("username")

	user, err := s.users.VerifyLogin(r.Context(), username, r.PostForm.Get("password"))
	if err != nil {
		log.Info("Login rejected", zap.String("username", username))
		http.Redirect(w, r, LoginPath+"?error=invalid", http.StatusFound)
		return
	}

	sessionID, err := s.sessions.Create(r.Context(), user.ID)
	if err != nil {
		log.Error("Create session failed", zap.Error(err))
		s.renderer.RenderError(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}

	auth.SetCookie(w, sessionID, s.secure)
	log.Info("Login accepted", zap.String("username", user.Username))
	http.Redirect(w, r, DashboardPath, http.StatusFound)
}

// HandleLogout handles GET /web/index.php/auth/logout. The session is
// deleted server-side so a replayed cookie no longer works.
func (s *Server) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if id, err := auth.GetFromRequest(r); err == nil {
		if err := s.sessions.Delete(r.Context(), id); err != nil {
			obs.From(r.Context()).Warn("Delete session failed", zap.Error(err))
		}
	}
	auth.ClearCookie(w, s.secure)
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, LoginPath, http.StatusFound)
}

// modulePage renders the page of the module labelled label. Must be wrapped
// in RequireSession.
func (s *Server) modulePage(label, route string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := auth.GetUser(r.Context())
		if user == nil {
			http.Redirect(w, r, LoginPath, http.StatusFound)
			return
		}

		data := ModulePageData{
			PageData:  PageData{Title: label},
			User:      user,
			Menu:      s.menuFor(route),
			LogoutURL: LogoutPath,
			Body: fmt.Sprintf("### %s\n\nSigned in as **%s**.\n",
				escapeMarkdown(label), escapeMarkdown(user.DisplayName)),
		}
		if err := s.renderer.Render(w, "module.html", data); err != nil {
			s.log.Error("Render module page failed", zap.String("module", label), zap.Error(err))
			s.renderer.RenderError(w, http.StatusInternalServerError, "Failed to render page")
		}
	})
}

func (s *Server) menuFor(active string) []MenuEntry {
	items := s.catalog.Items()
	entries := make([]MenuEntry, len(items))
	for n, item := range items {
		entries[n] = MenuEntry{Label: item.Label, Route: item.Route, Active: item.Route == active}
	}
	return entries
}
