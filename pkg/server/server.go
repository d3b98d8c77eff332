// Package server is the desk-facing HTTP front end: a scanning page for the
// circulation desk, a JSON bridge to the RPA core, reader lookups with
// caching, and the PIN-protected admin queue for return approvals.
package server

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/librarydesk/circdesk/pkg/config"
	"github.com/librarydesk/circdesk/pkg/notify"
	"github.com/librarydesk/circdesk/pkg/rpa"
	"github.com/librarydesk/circdesk/pkg/store"
)

// Desk is the slice of the RPA core the front end drives. The concrete
// implementation is *rpa.Driver; tests use a fake.
type Desk interface {
	SearchReaders(query string, limit int) ([]rpa.ReaderRecord, error)
	IssueItem(req rpa.ActionRequest) rpa.ActionResult
	ReturnItem(req rpa.ActionRequest) rpa.ActionResult
	Health() rpa.HealthStatus
	ManualLogin() rpa.ManualLoginStatus
}

const (
	readerCacheTTL     = time.Minute
	readerCacheCleanup = 5 * time.Minute
)

// Server owns the fiber application and its collaborators.
type Server struct {
	app      *fiber.App
	desk     Desk
	store    *store.Store
	notifier *notify.Notifier
	cfg      *config.Settings
	log      *zap.Logger

	validate *validator.Validate
	// readers caches search results briefly so a desk double-lookup does
	// not re-drive the browser.
	readers *cache.Cache
}

// New assembles the application and registers every route.
func New(cfg *config.Settings, desk Desk, st *store.Store, notifier *notify.Notifier, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		app: fiber.New(fiber.Config{
			AppName:               "circdesk",
			DisableStartupMessage: true,
		}),
		desk:     desk,
		store:    st,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
		validate: validator.New(),
		readers:  cache.New(readerCacheTTL, readerCacheCleanup),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.app.Get("/scan", s.handleScanPage)
	s.app.Post("/submit", s.handleSubmit)

	r := s.app.Group("/rpa")
	r.Get("/health", s.handleHealth)
	r.Get("/manual-login", s.handleManualLogin)
	r.Post("/issue", s.handleIssue)
	r.Post("/return", s.handleReturn)

	api := s.app.Group("/api/readers")
	api.Get("/search", s.handleReaderSearch)
	api.Get("/search-by-cardcode", s.handleReaderSearchByCardcode)

	admin := s.app.Group("/admin", s.requirePIN)
	admin.Get("/returns", s.handleListReturns)
	admin.Post("/returns/:id/approve", s.handleApproveReturn)
	admin.Post("/returns/:id/reject", s.handleRejectReturn)
}

// App exposes the fiber application for tests.
func (s *Server) App() *fiber.App { return s.app }

// Listen blocks serving HTTP on the configured address.
func (s *Server) Listen() error { return s.app.Listen(s.cfg.ListenAddr) }

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown() error { return s.app.Shutdown() }

// requirePIN guards the admin group. With no PIN configured the whole group
// is disabled rather than open.
func (s *Server) requirePIN(c *fiber.Ctx) error {
	if s.cfg.AdminPIN == "" {
		return respondError(c, fiber.StatusForbidden, "admin interface is disabled: no PIN configured")
	}
	pin := c.Query("pin")
	if pin == "" {
		pin = c.Get("X-Admin-Pin")
	}
	if pin != s.cfg.AdminPIN {
		return respondError(c, fiber.StatusUnauthorized, "invalid PIN")
	}
	return c.Next()
}

func respond(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(fiber.Map{
		"success": status < 400,
		"code":    status,
		"message": message,
		"data":    data,
	})
}

func respondError(c *fiber.Ctx, status int, message string) error {
	return respond(c, status, message, nil)
}
