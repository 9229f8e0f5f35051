package httpapi

import (
	"errors"
	"net/http"

	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/logger"
	"github.com/goliatone/go-clinic-notifications/pkg/notifications"
	"github.com/labstack/echo/v4"
)

type listParams struct {
	Page       int  `query:"page" validate:"omitempty,min=1"`
	PerPage    int  `query:"per_page" validate:"omitempty,min=1,max=100"`
	UnreadOnly bool `query:"unread_only"`
}

type latestParams struct {
	Limit int `query:"limit" validate:"omitempty,min=1,max=50"`
}

func (s *Server) listNotifications(c echo.Context) error {
	var params listParams
	if err := bindQuery(c, &params); err != nil {
		return err
	}
	page, err := s.query.List(c.Request().Context(), identityFrom(c).ID, notifications.ListQuery{
		Page:       params.Page,
		PerPage:    params.PerPage,
		UnreadOnly: params.UnreadOnly,
	})
	if err != nil {
		return s.queryError(c, err)
	}
	return c.JSON(http.StatusOK, notifications.NewListResponse(page))
}

func (s *Server) latestNotifications(c echo.Context) error {
	var params latestParams
	if err := bindQuery(c, &params); err != nil {
		return err
	}
	feed, err := s.query.Latest(c.Request().Context(), identityFrom(c).ID, params.Limit)
	if err != nil {
		return s.queryError(c, err)
	}
	return c.JSON(http.StatusOK, notifications.NewFeedResponse(feed))
}

func (s *Server) unreadCount(c echo.Context) error {
	count, err := s.query.UnreadCount(c.Request().Context(), identityFrom(c).ID)
	if err != nil {
		return s.queryError(c, err)
	}
	return c.JSON(http.StatusOK, notifications.CountResponse{Count: count})
}

func (s *Server) markRead(c echo.Context) error {
	if err := s.query.MarkRead(c.Request().Context(), identityFrom(c).ID, c.Param("id")); err != nil {
		return s.queryError(c, err)
	}
	return c.JSON(http.StatusOK, notifications.AckResponse{Success: true})
}

func (s *Server) markAllRead(c echo.Context) error {
	updated, err := s.query.MarkAllRead(c.Request().Context(), identityFrom(c).ID)
	if err != nil {
		return s.queryError(c, err)
	}
	return c.JSON(http.StatusOK, notifications.AckResponse{Success: true, Affected: updated})
}

func (s *Server) deleteNotification(c echo.Context) error {
	if err := s.query.Delete(c.Request().Context(), identityFrom(c).ID, c.Param("id")); err != nil {
		return s.queryError(c, err)
	}
	return c.JSON(http.StatusOK, notifications.AckResponse{Success: true})
}

func (s *Server) deleteRead(c echo.Context) error {
	deleted, err := s.query.DeleteRead(c.Request().Context(), identityFrom(c).ID)
	if err != nil {
		return s.queryError(c, err)
	}
	return c.JSON(http.StatusOK, notifications.AckResponse{Success: true, Affected: deleted})
}

func bindQuery(c echo.Context, target any) error {
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, target); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query parameters")
	}
	return c.Validate(target)
}

func (s *Server) queryError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, notifications.ErrInvalidID):
		return echo.NewHTTPError(http.StatusBadRequest, "invalid notification id")
	case errors.Is(err, notifications.ErrUserRequired):
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	default:
		s.logger.Error("httpapi: query service failed",
			logger.Field{Key: "path", Value: c.Path()},
			logger.Field{Key: "error", Value: err},
		)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
