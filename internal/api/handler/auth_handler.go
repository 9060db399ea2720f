package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/getbazar/bazar-api/internal/api/metrics"
	"github.com/getbazar/bazar-api/internal/core/domain"
	"github.com/getbazar/bazar-api/internal/core/ports"
)

type AuthHandler struct {
	auth       ports.AuthService
	onboarding ports.OnboardingService
	users      ports.UserService
}

func NewAuthHandler(auth ports.AuthService, onboarding ports.OnboardingService, users ports.UserService) *AuthHandler {
	return &AuthHandler{auth: auth, onboarding: onboarding, users: users}
}

type registerRequest struct {
	Email           string `json:"email"            validate:"required,email"`
	Password        string `json:"password"         validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
	Name            string `json:"name"`
}

type registerResponse struct {
	domain.RegistrationMetadata
	UserID  uuid.UUID       `json:"user_id"`
	Session *domain.Session `json:"session,omitempty"`
}

// loginRequest accepts JSON or an OAuth2 password form (username = email).
type loginRequest struct {
	Email    string `json:"email"    form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

type loginResponse struct {
	Session  *domain.Session          `json:"session"`
	Identity *domain.ProviderIdentity `json:"identity"`
	User     *domain.User             `json:"user"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type anonymousSessionResponse struct {
	User    *domain.User    `json:"user"`
	Session *domain.Session `json:"session"`
}

type anonymousProfileResponse struct {
	ID          uuid.UUID `json:"id"`
	AnonymousID string    `json:"anonymous_id"`
	IsAnonymous bool      `json:"is_anonymous"`
	CreatedAt   time.Time `json:"created_at"`
}

type convertRequest struct {
	Email           string `json:"email"            validate:"required,email"`
	Password        string `json:"password"         validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
	Name            string `json:"name"`
}

type convertResponse struct {
	*domain.ConversionResult
	Message string `json:"message"`
}

type completeOnboardingRequest struct {
	Name string `json:"name"`
}

type markForDeletionRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

type markForDeletionResponse struct {
	Success           bool      `json:"success"`
	UserID            uuid.UUID `json:"user_id"`
	MarkedForDeletion bool      `json:"marked_for_deletion"`
	Changed           bool      `json:"changed"`
	Message           string    `json:"message"`
}

type markedUsersResponse struct {
	Users []*domain.User `json:"users"`
	Count int            `json:"count"`
}

// Register creates a verified provider identity. The local user row is
// created later by complete-onboarding.
//
// @Summary      Register with email and password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Registration details"
// @Success      201   {object}  registerResponse
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      502   {object}  errorResponse
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	res, err := h.auth.Register(c.Request().Context(), ports.RegisterInput{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Name:            req.Name,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, registerResponse{
		RegistrationMetadata: res.Metadata,
		UserID:               res.Identity.ID,
		Session:              res.Session,
	})
}

// Login exchanges email and password for a provider session.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  loginResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	res, err := h.auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, loginResponse{Session: res.Session, Identity: res.Identity, User: res.User})
}

// Refresh exchanges a refresh token for a new session.
//
// @Summary      Refresh session
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      refreshRequest  true  "Refresh token"
// @Success      200   {object}  domain.AuthResult
// @Failure      401   {object}  errorResponse
// @Router       /auth/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return invalid("invalid payload")
	}
	if req.RefreshToken == "" {
		req.RefreshToken = c.QueryParam("refresh_token")
	}
	if req.RefreshToken == "" {
		req.RefreshToken = c.Request().Header.Get("X-Refresh-Token")
	}

	res, err := h.auth.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// CreateAnonymous starts an anonymous session and its local user.
//
// @Summary      Create anonymous user
// @Tags         auth
// @Produce      json
// @Success      201  {object}  anonymousSessionResponse
// @Failure      502  {object}  errorResponse
// @Router       /auth/create-anonymous [post]
func (h *AuthHandler) CreateAnonymous(c echo.Context) error {
	res, err := h.onboarding.CreateAnonymous(c.Request().Context())
	if err != nil {
		return err
	}
	metrics.IdentityTransitionsTotal.WithLabelValues(domain.TransitionAnonymousCreated).Inc()
	return c.JSON(http.StatusCreated, anonymousSessionResponse{User: res.User, Session: res.Session})
}

// AnonymousProfile returns the anonymous user resolved from X-Anonymous-ID.
//
// @Summary      Anonymous profile
// @Tags         auth
// @Produce      json
// @Param        X-Anonymous-ID  header    string  false  "Anonymous identifier"
// @Param        anonymous_id    query     string  false  "Anonymous identifier"
// @Success      200             {object}  anonymousProfileResponse
// @Failure      401             {object}  errorResponse
// @Failure      404             {object}  errorResponse
// @Router       /auth/anonymous-profile [get]
func (h *AuthHandler) AnonymousProfile(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, anonymousProfileResponse{
		ID:          user.ID,
		AnonymousID: domain.StringValue(user.AnonymousID),
		IsAnonymous: user.IsAnonymous,
		CreatedAt:   user.CreatedAt,
	})
}

// ConvertAnonymous turns the calling anonymous user into a verified one,
// keeping its id.
//
// @Summary      Convert anonymous user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      convertRequest  true  "New credentials"
// @Success      200   {object}  convertResponse
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      502   {object}  errorResponse
// @Router       /auth/convert-anonymous [post]
func (h *AuthHandler) ConvertAnonymous(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req convertRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Password != req.ConfirmPassword {
		return domain.ErrPasswordMismatch
	}

	res, err := h.onboarding.ConvertAnonymous(c.Request().Context(), user, ports.ConvertInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		return err
	}
	metrics.IdentityTransitionsTotal.WithLabelValues(domain.TransitionConverted).Inc()

	msg := "anonymous user converted"
	if res.RequiresEmailConfirmation {
		msg = "anonymous user converted, confirm your email to sign in"
	}
	return c.JSON(http.StatusOK, convertResponse{ConversionResult: res, Message: msg})
}

// CompleteOnboarding creates the local user for an authenticated verified
// identity.
//
// @Summary      Complete onboarding
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      completeOnboardingRequest  false  "Profile"
// @Success      201   {object}  domain.User
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /auth/complete-onboarding [post]
func (h *AuthHandler) CompleteOnboarding(c echo.Context) error {
	ident, err := currentIdentity(c)
	if err != nil {
		return err
	}
	var req completeOnboardingRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.onboarding.CompleteOnboarding(c.Request().Context(), ident, req.Name)
	if err != nil {
		return err
	}
	metrics.IdentityTransitionsTotal.WithLabelValues(domain.TransitionOnboarded).Inc()
	return c.JSON(http.StatusCreated, user)
}

// MarkForDeletion flags a user for the deletion job. Callers may mark
// themselves or any anonymous user.
//
// @Summary      Mark user for deletion
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      markForDeletionRequest  true  "Target user"
// @Success      200   {object}  markForDeletionResponse
// @Failure      403   {object}  errorResponse
// @Router       /auth/mark-for-deletion [post]
func (h *AuthHandler) MarkForDeletion(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req markForDeletionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	target, err := uuid.Parse(req.UserID)
	if err != nil {
		return invalid("user_id must be a valid UUID")
	}

	res, err := h.users.MarkForDeletion(c.Request().Context(), actor, target)
	if err != nil {
		return err
	}

	msg := "user already marked for deletion or not found"
	if res.Changed {
		metrics.IdentityTransitionsTotal.WithLabelValues(domain.TransitionMarkedForDeletion).Inc()
		msg = "user marked for deletion successfully"
	}
	return c.JSON(http.StatusOK, markForDeletionResponse{
		Success:           true,
		UserID:            res.UserID,
		MarkedForDeletion: res.MarkedForDeletion,
		Changed:           res.Changed,
		Message:           msg,
	})
}

// UsersMarkedForDeletion lists the deletion queue.
//
// @Summary      Users marked for deletion
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  markedUsersResponse
// @Failure      403  {object}  errorResponse
// @Router       /auth/users-marked-for-deletion [get]
func (h *AuthHandler) UsersMarkedForDeletion(c echo.Context) error {
	users, err := h.users.ListMarkedForDeletion(c.Request().Context())
	if err != nil {
		return err
	}
	if users == nil {
		users = []*domain.User{}
	}
	return c.JSON(http.StatusOK, markedUsersResponse{Users: users, Count: len(users)})
}
