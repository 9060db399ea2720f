package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/getbazar/bazar-api/internal/core/domain"
	"github.com/getbazar/bazar-api/internal/core/ports"
)

// UserHandler handles HTTP requests for user administration.
type UserHandler struct {
	service ports.UserService
}

func NewUserHandler(service ports.UserService) *UserHandler {
	return &UserHandler{service: service}
}

type createUserRequest struct {
	ID              string `json:"id"                validate:"required,uuid"`
	Email           string `json:"email"             validate:"required,email"`
	Name            string `json:"name"`
	ProfileImageURL string `json:"profile_image_url" validate:"omitempty,url"`
}

type updateUserRequest struct {
	Name              *string `json:"name"`
	ProfileImageURL   *string `json:"profile_image_url"   validate:"omitempty,url"`
	MarkedForDeletion *bool   `json:"marked_for_deletion"`
}

type listUsersResponse struct {
	Items      []*domain.User `json:"items"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"total_pages"`
}

// Create registers a local user for an existing provider identity.
//
// @Summary      Create user
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createUserRequest  true  "User"
// @Success      201   {object}  domain.User
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /users [post]
func (h *UserHandler) Create(c echo.Context) error {
	var req createUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		return invalid("id must be a valid UUID")
	}

	user, err := h.service.Create(c.Request().Context(), ports.CreateUserInput{
		ID:              id,
		Email:           req.Email,
		Name:            req.Name,
		ProfileImageURL: req.ProfileImageURL,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, user)
}

// List returns a page of users.
//
// @Summary      List users
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        page                 query     int     false  "Page (1-based)"
// @Param        limit                query     int     false  "Page size (max 100)"
// @Param        email                query     string  false  "Exact email"
// @Param        is_anonymous         query     bool    false  "Anonymous filter"
// @Param        marked_for_deletion  query     bool    false  "Deletion flag filter"
// @Success      200                  {object}  listUsersResponse
// @Failure      400                  {object}  errorResponse
// @Failure      403                  {object}  errorResponse
// @Router       /users [get]
func (h *UserHandler) List(c echo.Context) error {
	page, limit, err := pagination(c)
	if err != nil {
		return err
	}
	anonymous, err := boolQuery(c, "is_anonymous")
	if err != nil {
		return err
	}
	marked, err := boolQuery(c, "marked_for_deletion")
	if err != nil {
		return err
	}

	res, err := h.service.List(c.Request().Context(), ports.ListUsersFilter{
		Email:             c.QueryParam("email"),
		IsAnonymous:       anonymous,
		MarkedForDeletion: marked,
		Page:              page,
		Limit:             limit,
	})
	if err != nil {
		return err
	}

	items := res.Items
	if items == nil {
		items = []*domain.User{}
	}
	return c.JSON(http.StatusOK, listUsersResponse{
		Items:      items,
		Total:      res.Total,
		Page:       res.Page,
		Limit:      res.Limit,
		TotalPages: res.TotalPages,
	})
}

// Me returns the calling user.
//
// @Summary      Current user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.User
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /users/me [get]
func (h *UserHandler) Me(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// Get returns one user.
//
// @Summary      Get user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User id"
// @Success      200  {object}  domain.User
// @Failure      404  {object}  errorResponse
// @Router       /users/{id} [get]
func (h *UserHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	user, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// Update changes profile fields of a user.
//
// @Summary      Update user
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string             true  "User id"
// @Param        body  body      updateUserRequest  true  "Fields to change"
// @Success      200   {object}  domain.User
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /users/{id} [put]
func (h *UserHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req updateUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.service.Update(c.Request().Context(), id, ports.UserUpdate{
		Name:              req.Name,
		ProfileImageURL:   req.ProfileImageURL,
		MarkedForDeletion: req.MarkedForDeletion,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// Delete soft-deletes a user.
//
// @Summary      Delete user
// @Tags         users
// @Security     BearerAuth
// @Param        id   path  string  true  "User id"
// @Success      204
// @Failure      404  {object}  errorResponse
// @Router       /users/{id} [delete]
func (h *UserHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
