// Package web serves a stand-in OrangeHRM: the login form, one page per
// sidebar module with the client-side menu filter, and logout. Browser
// suites run against it when no real instance is configured.
package web

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"

	"go.uber.org/zap"

	"github.com/kuitang/orangehrm-e2e/internal/auth"
	"github.com/kuitang/orangehrm-e2e/internal/menu"
	"github.com/kuitang/orangehrm-e2e/internal/obs"
	"github.com/kuitang/orangehrm-e2e/internal/ratelimit"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed assets/*
var assetFS embed.FS

// Routes served by the stand-in app.
const (
	LoginPath     = "/web/index.php/auth/login"
	ValidatePath  = "/web/index.php/auth/validate"
	LogoutPath    = "/web/index.php/auth/logout"
	DashboardPath = "/web/index.php/dashboard/index"
	staticPattern = "GET /web/static/{file}"
)

// Demo account seeded into every server.
const (
	DefaultUsername    = "Admin"
	DefaultPassword    = "admin123"
	DefaultDisplayName = "Paul Collings"
)

// Options configures a Server. The zero value is usable.
type Options struct {
	// Catalog lists the sidebar modules; nil selects menu.Default().
	Catalog *menu.Catalog
	// Hasher hashes account passwords; nil selects bcrypt.
	Hasher auth.PasswordHasher
	// Clock drives session expiry; nil reads the system clock.
	Clock auth.Clock
	// RateLimit throttles login attempts per client; zero selects
	// ratelimit.DefaultConfig.
	RateLimit ratelimit.Config
	// Secure marks the session cookie Secure.
	Secure bool
}

// Server is the stand-in application. It implements http.Handler.
type Server struct {
	renderer *Renderer
	catalog  *menu.Catalog
	users    *auth.UserService
	sessions *auth.SessionService
	limiter  *ratelimit.RateLimiter
	secure   bool
	handler  http.Handler
	log      *zap.Logger
}

// New builds a server with the demo account registered. Call Close to stop
// its background work.
func New(opts Options) (*Server, error) {
	templates, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, err
	}
	renderer, err := NewRenderer(templates)
	if err != nil {
		return nil, err
	}
	assets, err := fs.Sub(assetFS, "assets")
	if err != nil {
		return nil, err
	}

	catalog := opts.Catalog
	if catalog == nil {
		catalog = menu.Default()
	}
	rl := opts.RateLimit
	if rl.RPS == 0 {
		rl = ratelimit.DefaultConfig
	}

	users := auth.NewUserService(opts.Hasher)
	if opts.Clock != nil {
		users.SetClock(opts.Clock)
	}
	if _, err := users.Register(context.Background(), DefaultUsername, DefaultDisplayName, DefaultPassword); err != nil {
		return nil, fmt.Errorf("seed demo account: %w", err)
	}

	s := &Server{
		renderer: renderer,
		catalog:  catalog,
		users:    users,
		sessions: auth.NewSessionService(opts.Clock),
		limiter:  ratelimit.NewRateLimiter(rl),
		secure:   opts.Secure,
		log:      obs.Pkg("web"),
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux, NewStaticHandler(assets))
	s.handler = obs.AccessLog("web", mux)
	return s, nil
}

func (s *Server) registerRoutes(mux *http.ServeMux, static http.Handler) {
	mw := auth.NewMiddleware(s.sessions, s.users, LoginPath)

	mux.HandleFunc("GET /{$}", s.HandleRoot)
	mux.HandleFunc("GET "+LoginPath, s.HandleLoginPage)
	mux.Handle("POST "+ValidatePath, ratelimit.Middleware(s.limiter, ratelimit.ClientIP)(http.HandlerFunc(s.HandleValidate)))
	mux.HandleFunc("GET "+LogoutPath, s.HandleLogout)
	mux.Handle(staticPattern, static)

	registered := make(map[string]bool)
	for _, item := range s.catalog.Items() {
		if registered[item.Route] {
			s.log.Warn("Duplicate module route ignored", zap.String("module", item.Label), zap.String("route", item.Route))
			continue
		}
		registered[item.Route] = true
		mux.Handle("GET "+item.Route, mw.RequireSession(s.modulePage(item.Label, item.Route)))
	}
	if !registered[DashboardPath] {
		mux.Handle("GET "+DashboardPath, mw.RequireSession(s.modulePage("Dashboard", DashboardPath)))
	}
}

// ServeHTTP dispatches to the application routes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Users exposes the account store, for registering extra accounts.
func (s *Server) Users() *auth.UserService {
	return s.users
}

// Sessions exposes the session store.
func (s *Server) Sessions() *auth.SessionService {
	return s.sessions
}

// Close stops the login rate limiter.
func (s *Server) Close() {
	s.limiter.Stop()
}
