package handler

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/getbazar/bazar-api/internal/api/middleware"
	"github.com/getbazar/bazar-api/internal/core/domain"
	"github.com/getbazar/bazar-api/internal/core/ports"
)

// currentUser returns the user resolved by the middleware chain and fails
// fast when the route was mounted without it.
func currentUser(c echo.Context) (*domain.User, error) {
	u := middleware.CurrentUser(c)
	if u == nil {
		return nil, domain.ErrUserNotRegistered
	}
	return u, nil
}

func currentIdentity(c echo.Context) (*domain.ProviderIdentity, error) {
	ident := middleware.Identity(c)
	if ident == nil {
		return nil, domain.ErrMissingCredential
	}
	return ident, nil
}

func pathID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, invalid("%s must be a valid UUID", name)
	}
	return id, nil
}

// pagination reads page and limit query parameters; zero means default.
func pagination(c echo.Context) (page, limit int, err error) {
	if page, err = intQuery(c, "page"); err != nil {
		return 0, 0, err
	}
	if limit, err = intQuery(c, "limit"); err != nil {
		return 0, 0, err
	}
	if page > ports.MaxPage {
		return 0, 0, invalid("page must be at most %d", ports.MaxPage)
	}
	return page, limit, nil
}

func intQuery(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, invalid("%s must be a non-negative integer", name)
	}
	return n, nil
}

func boolQuery(c echo.Context, name string) (*bool, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, invalid("%s must be a boolean", name)
	}
	return &b, nil
}
