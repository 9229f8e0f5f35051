package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-clinic-notifications/pkg/channels"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/logger"
	"github.com/goliatone/go-clinic-notifications/pkg/transport"
	"github.com/labstack/echo/v4"
)

type authRequest struct {
	ChannelName string `json:"channel_name" form:"channel_name" validate:"required"`
	SocketID    string `json:"socket_id" form:"socket_id"`
}

type authResponse struct {
	Auth string `json:"auth"`
}

func (s *Server) authorizeChannel(c echo.Context) error {
	var req authRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	identity := identityFrom(c)
	grant, err := s.granter.Issue(identity, req.ChannelName, req.SocketID)
	if err != nil {
		if errors.Is(err, channels.ErrForbidden) {
			s.logger.Info("httpapi: channel denied",
				logger.Field{Key: "channel", Value: req.ChannelName},
				logger.Field{Key: "user_id", Value: identity.ID},
			)
			return echo.NewHTTPError(http.StatusForbidden, "forbidden")
		}
		return err
	}
	s.logger.Debug("httpapi: channel granted",
		logger.Field{Key: "channel", Value: req.ChannelName},
		logger.Field{Key: "user_id", Value: identity.ID},
		logger.Field{Key: "grant", Value: maskToken(grant)},
	)
	return c.JSON(http.StatusOK, authResponse{Auth: grant})
}

// stream relays transport messages for one channel as Server-Sent Events.
// Public channels only need an authenticated caller; private and admin
// channels also need a grant issued to the same subject.
func (s *Server) stream(c echo.Context) error {
	if s.subscriber == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "stream unavailable")
	}
	channel := strings.TrimSpace(c.QueryParam("channel"))
	if channel == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "channel is required")
	}
	identity := identityFrom(c)
	if err := s.admit(identity, channel, c.QueryParam("auth")); err != nil {
		return err
	}

	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "stream unsupported")
	}

	ctx := c.Request().Context()
	sub, err := s.subscriber.Subscribe(ctx, channel)
	if err != nil {
		s.logger.Warn("httpapi: subscribe failed",
			logger.Field{Key: "channel", Value: channel},
			logger.Field{Key: "error", Value: err},
		)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "stream unavailable")
	}
	defer sub.Close()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := res.Write([]byte(": ping\n\n")); err != nil {
				return nil
			}
			flusher.Flush()
		case msg, ok := <-sub.Messages():
			if !ok {
				return nil
			}
			if err := writeEvent(res, msg); err != nil {
				s.logger.Debug("httpapi: stream closed",
					logger.Field{Key: "channel", Value: channel},
					logger.Field{Key: "error", Value: err},
				)
				return nil
			}
			flusher.Flush()
		}
	}
}

func (s *Server) admit(identity channels.Identity, channel, rawGrant string) error {
	authorizer := s.granter.Authorizer()
	visibility, known := authorizer.Classify(channel)
	if !known || !authorizer.Authorize(channel, identity) {
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	}
	if visibility == channels.VisibilityPublic {
		return nil
	}
	grant, err := s.granter.Verify(rawGrant, channel)
	if err != nil || grant.Subject != identity.ID {
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	}
	return nil
}

func writeEvent(res *echo.Response, msg transport.Message) error {
	data, err := json.Marshal(msg.Data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(res, "event: %s\ndata: %s\n\n", msg.Event, data)
	return err
}
