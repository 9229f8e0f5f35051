package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goliatone/go-clinic-notifications/pkg/channels"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/logger"
	"github.com/goliatone/go-clinic-notifications/pkg/notifications"
	"github.com/goliatone/go-clinic-notifications/pkg/transport"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const defaultKeepAlive = 25 * time.Second

// QueryService is the notification feed as seen by the HTTP layer. Ids are
// the raw path values.
type QueryService interface {
	List(ctx context.Context, userID string, q notifications.ListQuery) (notifications.Page, error)
	Latest(ctx context.Context, userID string, limit int) (notifications.Feed, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, userID, id string) error
	DeleteRead(ctx context.Context, userID string) (int, error)
}

// Dependencies wires the API server.
type Dependencies struct {
	Notifications QueryService
	Granter       *channels.Granter
	Subscriber    transport.Subscriber
	Authenticator *Authenticator
	Logger        logger.Logger
	// KeepAlive is the interval of SSE comment frames. Zero uses the default.
	KeepAlive time.Duration
}

// Server exposes the query service, the channel authorization endpoint and
// the SSE stream.
type Server struct {
	echo       *echo.Echo
	query      QueryService
	granter    *channels.Granter
	subscriber transport.Subscriber
	auth       *Authenticator
	logger     logger.Logger
	keepAlive  time.Duration
}

var (
	errQueryRequired   = errors.New("httpapi: query service is required")
	errGranterRequired = errors.New("httpapi: granter is required")
	errAuthRequired    = errors.New("httpapi: authenticator is required")
)

// New builds a server with its own echo instance and registers every route.
// Without a Subscriber the stream endpoint answers 503.
func New(deps Dependencies) (*Server, error) {
	if deps.Notifications == nil {
		return nil, errQueryRequired
	}
	if deps.Granter == nil {
		return nil, errGranterRequired
	}
	if deps.Authenticator == nil {
		return nil, errAuthRequired
	}
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}
	if deps.KeepAlive <= 0 {
		deps.KeepAlive = defaultKeepAlive
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &structValidator{validate: validator.New()}
	e.Use(middleware.Recover())

	s := &Server{
		echo:       e,
		query:      deps.Notifications,
		granter:    deps.Granter,
		subscriber: deps.Subscriber,
		auth:       deps.Authenticator,
		logger:     deps.Logger,
		keepAlive:  deps.KeepAlive,
	}
	e.Use(s.requestLogger)
	s.Register(e)
	return s, nil
}

// Register mounts the routes on e.
func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	n := e.Group("/notifications", s.requireIdentity)
	n.GET("", s.listNotifications)
	n.GET("/latest", s.latestNotifications)
	n.GET("/unread-count", s.unreadCount)
	n.POST("/mark-all-read", s.markAllRead)
	n.DELETE("/read/all", s.deleteRead)
	n.POST("/:id/read", s.markRead)
	n.DELETE("/:id", s.deleteNotification)

	b := e.Group("/broadcasting", s.requireIdentity)
	b.POST("/auth", s.authorizeChannel)
	b.GET("/stream", s.stream)
}

// Echo returns the underlying echo instance.
func (s *Server) Echo() *echo.Echo { return s.echo }

// ServeHTTP makes the server usable as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info("httpapi: listening", logger.Field{Key: "addr", Value: addr})
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		req := c.Request()
		fields := []logger.Field{
			{Key: "method", Value: req.Method},
			{Key: "path", Value: c.Path()},
			{Key: "status", Value: c.Response().Status},
			{Key: "duration_ms", Value: time.Since(start).Milliseconds()},
		}
		if token := c.QueryParam("token"); token != "" {
			fields = append(fields, logger.Field{Key: "token", Value: maskToken(token)})
		}
		s.logger.Debug("httpapi: request", fields...)
		return nil
	}
}

type structValidator struct {
	validate *validator.Validate
}

func (v *structValidator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return nil
}
