package handler

import (
	"context"
	"io"
	"net/http/httptest"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/getbazar/bazar-api/internal/core/domain"
	"github.com/getbazar/bazar-api/internal/core/ports"
)

type stubAuthService struct {
	loginFn    func(ctx context.Context, email, password string) (*ports.LoginResult, error)
	refreshFn  func(ctx context.Context, token string) (*domain.AuthResult, error)
	registerFn func(ctx context.Context, in ports.RegisterInput) (*ports.RegisterResult, error)
}

func (s *stubAuthService) Login(ctx context.Context, email, password string) (*ports.LoginResult, error) {
	return s.loginFn(ctx, email, password)
}

func (s *stubAuthService) Refresh(ctx context.Context, token string) (*domain.AuthResult, error) {
	return s.refreshFn(ctx, token)
}

func (s *stubAuthService) Register(ctx context.Context, in ports.RegisterInput) (*ports.RegisterResult, error) {
	return s.registerFn(ctx, in)
}

type stubOnboarding struct {
	createFn   func(ctx context.Context) (*ports.AnonymousSessionResult, error)
	completeFn func(ctx context.Context, ident *domain.ProviderIdentity, name string) (*domain.User, error)
	convertFn  func(ctx context.Context, u *domain.User, in ports.ConvertInput) (*domain.ConversionResult, error)
}

func (s *stubOnboarding) CreateAnonymous(ctx context.Context) (*ports.AnonymousSessionResult, error) {
	return s.createFn(ctx)
}

func (s *stubOnboarding) CompleteOnboarding(ctx context.Context, ident *domain.ProviderIdentity, name string) (*domain.User, error) {
	return s.completeFn(ctx, ident, name)
}

func (s *stubOnboarding) ConvertAnonymous(ctx context.Context, u *domain.User, in ports.ConvertInput) (*domain.ConversionResult, error) {
	return s.convertFn(ctx, u, in)
}

// stubUserService embeds the interface so tests only implement what they call.
type stubUserService struct {
	ports.UserService
	getFn    func(ctx context.Context, id uuid.UUID) (*domain.User, error)
	listFn   func(ctx context.Context, f ports.ListUsersFilter) (*ports.ListUsersResult, error)
	createFn func(ctx context.Context, in ports.CreateUserInput) (*domain.User, error)
	updateFn func(ctx context.Context, id uuid.UUID, upd ports.UserUpdate) (*domain.User, error)
	deleteFn func(ctx context.Context, id uuid.UUID) error
	markFn   func(ctx context.Context, actor *domain.User, target uuid.UUID) (*ports.MarkForDeletionResult, error)
	markedFn func(ctx context.Context) ([]*domain.User, error)
}

func (s *stubUserService) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.getFn(ctx, id)
}

func (s *stubUserService) List(ctx context.Context, f ports.ListUsersFilter) (*ports.ListUsersResult, error) {
	return s.listFn(ctx, f)
}

func (s *stubUserService) Create(ctx context.Context, in ports.CreateUserInput) (*domain.User, error) {
	return s.createFn(ctx, in)
}

func (s *stubUserService) Update(ctx context.Context, id uuid.UUID, upd ports.UserUpdate) (*domain.User, error) {
	return s.updateFn(ctx, id, upd)
}

func (s *stubUserService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.deleteFn(ctx, id)
}

func (s *stubUserService) MarkForDeletion(ctx context.Context, actor *domain.User, target uuid.UUID) (*ports.MarkForDeletionResult, error) {
	return s.markFn(ctx, actor, target)
}

func (s *stubUserService) ListMarkedForDeletion(ctx context.Context) ([]*domain.User, error) {
	return s.markedFn(ctx)
}

type stubFileService struct {
	ports.FileService
	uploadFn func(ctx context.Context, owner *domain.User, in ports.UploadFileInput) (*domain.File, error)
	listFn   func(ctx context.Context, caller *domain.User, roles []domain.RoleName, page, limit int) (*ports.ListFilesResult, error)
	deleteFn func(ctx context.Context, caller *domain.User, roles []domain.RoleName, id uuid.UUID) error
}

func (s *stubFileService) Upload(ctx context.Context, owner *domain.User, in ports.UploadFileInput) (*domain.File, error) {
	return s.uploadFn(ctx, owner, in)
}

func (s *stubFileService) List(ctx context.Context, caller *domain.User, roles []domain.RoleName, page, limit int) (*ports.ListFilesResult, error) {
	return s.listFn(ctx, caller, roles, page, limit)
}

func (s *stubFileService) Delete(ctx context.Context, caller *domain.User, roles []domain.RoleName, id uuid.UUID) error {
	return s.deleteFn(ctx, caller, roles, id)
}

type stubTaskService struct {
	submitFn func(ctx context.Context, caller *domain.User, in ports.SubmitTaskInput) (*domain.TaskMessage, error)
}

func (s *stubTaskService) Submit(ctx context.Context, caller *domain.User, in ports.SubmitTaskInput) (*domain.TaskMessage, error) {
	return s.submitFn(ctx, caller, in)
}

func newTestContext(method, target string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}
