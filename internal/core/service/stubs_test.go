package service

import (
	"context"
	"io"
	"maps"
	"sync"

	"github.com/google/uuid"

	"github.com/getbazar/bazar-api/internal/core/domain"
	"github.com/getbazar/bazar-api/internal/core/ports"
)

// ---------------------------------------------------------------------------
// In-memory user registry with transactional rollback
// ---------------------------------------------------------------------------

type memRegistry struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
	roles map[uuid.UUID][]domain.RoleName

	assignErr  error // if set, AssignRole fails
	convertErr error // if set, ConvertAnonymous fails
	txCount    int
}

func newMemRegistry() *memRegistry {
	return &memRegistry{
		users: make(map[uuid.UUID]*domain.User),
		roles: make(map[uuid.UUID][]domain.RoleName),
	}
}

func (r *memRegistry) seed(u *domain.User, roles ...domain.RoleName) {
	clone := *u
	r.users[u.ID] = &clone
	r.roles[u.ID] = roles
}

func (r *memRegistry) get(id uuid.UUID) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil
	}
	clone := *u
	return &clone
}

func (r *memRegistry) FindByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, domain.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (r *memRegistry) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.DeletedAt == nil && domain.StringValue(u.Email) == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *memRegistry) FindByAnonymousID(_ context.Context, anonymousID string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.DeletedAt == nil && domain.StringValue(u.AnonymousID) == anonymousID {
			clone := *u
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *memRegistry) List(_ context.Context, f ports.ListUsersFilter) ([]*domain.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.User
	for _, u := range r.users {
		if u.DeletedAt != nil {
			continue
		}
		clone := *u
		out = append(out, &clone)
	}
	total := int64(len(out))
	start := (f.Page - 1) * f.Limit
	if start > len(out) {
		start = len(out)
	}
	end := start + f.Limit
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], total, nil
}

func (r *memRegistry) RolesOf(_ context.Context, id uuid.UUID) ([]domain.RoleName, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.RoleName(nil), r.roles[id]...), nil
}

func (r *memRegistry) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.ID == u.ID {
			return domain.ErrUserExists
		}
		if u.Email != nil && domain.StringValue(existing.Email) == *u.Email {
			return domain.ErrEmailTaken
		}
		if u.AnonymousID != nil && domain.StringValue(existing.AnonymousID) == *u.AnonymousID {
			return domain.ErrUserExists
		}
	}
	clone := *u
	r.users[u.ID] = &clone
	return nil
}

func (r *memRegistry) AssignRole(_ context.Context, id uuid.UUID, role domain.RoleName) error {
	if r.assignErr != nil {
		return r.assignErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[id] = append(r.roles[id], role)
	return nil
}

func (r *memRegistry) ConvertAnonymous(_ context.Context, id uuid.UUID, email string, name *string) (*domain.User, error) {
	if r.convertErr != nil {
		return nil, r.convertErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || !u.IsAnonymous {
		return nil, domain.ErrAnonymousUserNotFound
	}
	u.ConvertedFromAnonymousID = u.AnonymousID
	u.AnonymousID = nil
	u.IsAnonymous = false
	u.Email = &email
	if name != nil {
		u.Name = name
	}
	clone := *u
	return &clone, nil
}

func (r *memRegistry) Update(_ context.Context, id uuid.UUID, upd ports.UserUpdate) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, domain.ErrUserNotFound
	}
	if upd.Name != nil {
		u.Name = upd.Name
	}
	if upd.ProfileImageURL != nil {
		u.ProfileImageURL = upd.ProfileImageURL
	}
	if upd.MarkedForDeletion != nil {
		u.MarkedForDeletion = *upd.MarkedForDeletion
	}
	clone := *u
	return &clone, nil
}

func (r *memRegistry) SoftDelete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.DeletedAt != nil {
		return domain.ErrUserNotFound
	}
	now := u.UpdatedAt
	u.DeletedAt = &now
	return nil
}

func (r *memRegistry) MarkForDeletion(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.DeletedAt != nil || u.MarkedForDeletion {
		return false, nil
	}
	u.MarkedForDeletion = true
	return true, nil
}

func (r *memRegistry) ListMarkedForDeletion(_ context.Context) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.User
	for _, u := range r.users {
		if u.MarkedForDeletion && u.DeletedAt == nil {
			clone := *u
			out = append(out, &clone)
		}
	}
	return out, nil
}

// WithinTx snapshots the maps and restores them when fn fails.
func (r *memRegistry) WithinTx(_ context.Context, fn func(tx ports.UserRegistry) error) error {
	r.mu.Lock()
	r.txCount++
	users := make(map[uuid.UUID]*domain.User, len(r.users))
	for id, u := range r.users {
		clone := *u
		users[id] = &clone
	}
	roles := maps.Clone(r.roles)
	r.mu.Unlock()

	if err := fn(r); err != nil {
		r.mu.Lock()
		r.users, r.roles = users, roles
		r.mu.Unlock()
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Identity provider stub
// ---------------------------------------------------------------------------

type stubProvider struct {
	verifyFn    func(ctx context.Context, token string) (*domain.ProviderIdentity, error)
	signInFn    func(ctx context.Context, email, password string) (*domain.AuthResult, error)
	signUpFn    func(ctx context.Context, email, password string, meta map[string]any) (*domain.AuthResult, error)
	anonymousFn func(ctx context.Context) (*domain.AuthResult, error)
	upgradeFn   func(ctx context.Context, id uuid.UUID, email, password string, meta map[string]any) (*domain.ProviderIdentity, error)
	refreshFn   func(ctx context.Context, token string) (*domain.AuthResult, error)

	calls []string
}

func (p *stubProvider) VerifyCredential(ctx context.Context, token string) (*domain.ProviderIdentity, error) {
	p.calls = append(p.calls, "verify")
	return p.verifyFn(ctx, token)
}

func (p *stubProvider) SignIn(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	p.calls = append(p.calls, "sign_in")
	return p.signInFn(ctx, email, password)
}

func (p *stubProvider) SignUp(ctx context.Context, email, password string, meta map[string]any) (*domain.AuthResult, error) {
	p.calls = append(p.calls, "sign_up")
	return p.signUpFn(ctx, email, password, meta)
}

func (p *stubProvider) CreateAnonymousSession(ctx context.Context) (*domain.AuthResult, error) {
	p.calls = append(p.calls, "anonymous")
	return p.anonymousFn(ctx)
}

func (p *stubProvider) UpgradeIdentity(ctx context.Context, id uuid.UUID, email, password string, meta map[string]any) (*domain.ProviderIdentity, error) {
	p.calls = append(p.calls, "upgrade")
	return p.upgradeFn(ctx, id, email, password, meta)
}

func (p *stubProvider) RefreshSession(ctx context.Context, token string) (*domain.AuthResult, error) {
	p.calls = append(p.calls, "refresh")
	return p.refreshFn(ctx, token)
}

// ---------------------------------------------------------------------------
// Audit, queue, dedup, file and blob stubs
// ---------------------------------------------------------------------------

type stubAudit struct {
	err    error
	events []domain.IdentityEvent
}

func (a *stubAudit) Append(_ context.Context, e domain.IdentityEvent) error {
	if a.err != nil {
		return a.err
	}
	a.events = append(a.events, e)
	return nil
}

type stubQueue struct {
	messages []domain.TaskMessage
	err      error
}

func (q *stubQueue) Enqueue(_ context.Context, msg domain.TaskMessage) error {
	if q.err != nil {
		return q.err
	}
	q.messages = append(q.messages, msg)
	return nil
}

type stubIdempotency struct {
	seen     map[string]bool
	err      error
	released []string
}

func (s *stubIdempotency) Release(_ context.Context, key string) error {
	delete(s.seen, key)
	s.released = append(s.released, key)
	return nil
}

func (s *stubIdempotency) Claim(_ context.Context, key string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if s.seen == nil {
		s.seen = map[string]bool{}
	}
	if s.seen[key] {
		return false, nil
	}
	s.seen[key] = true
	return true, nil
}

type stubFileRepo struct {
	files     map[uuid.UUID]*domain.File
	createErr error
}

func newStubFileRepo() *stubFileRepo {
	return &stubFileRepo{files: make(map[uuid.UUID]*domain.File)}
}

func (r *stubFileRepo) Create(_ context.Context, f *domain.File) error {
	if r.createErr != nil {
		return r.createErr
	}
	clone := *f
	r.files[f.ID] = &clone
	return nil
}

func (r *stubFileRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.File, error) {
	f, ok := r.files[id]
	if !ok || f.DeletedAt != nil {
		return nil, domain.ErrFileNotFound
	}
	clone := *f
	return &clone, nil
}

func (r *stubFileRepo) List(_ context.Context, filter ports.ListFilesFilter) ([]*domain.File, int64, error) {
	var out []*domain.File
	for _, f := range r.files {
		if f.DeletedAt != nil {
			continue
		}
		if filter.OwnerID != nil && !f.OwnedBy(*filter.OwnerID) {
			continue
		}
		clone := *f
		out = append(out, &clone)
	}
	return out, int64(len(out)), nil
}

func (r *stubFileRepo) Rename(_ context.Context, id uuid.UUID, name string) (*domain.File, error) {
	f, ok := r.files[id]
	if !ok {
		return nil, domain.ErrFileNotFound
	}
	f.Name = name
	clone := *f
	return &clone, nil
}

func (r *stubFileRepo) SoftDelete(_ context.Context, id uuid.UUID) error {
	f, ok := r.files[id]
	if !ok {
		return domain.ErrFileNotFound
	}
	ts := f.UpdatedAt
	f.DeletedAt = &ts
	return nil
}

type stubBlobs struct {
	putErr  error
	stored  map[string]int64
	deleted []string
}

func (b *stubBlobs) Put(_ context.Context, key string, body io.Reader, size int64, _ string) (string, error) {
	if b.putErr != nil {
		return "", b.putErr
	}
	if b.stored == nil {
		b.stored = map[string]int64{}
	}
	n, _ := io.Copy(io.Discard, body)
	b.stored[key] = n
	return "s3://bucket/" + key, nil
}

func (b *stubBlobs) Delete(_ context.Context, key string) error {
	b.deleted = append(b.deleted, key)
	delete(b.stored, key)
	return nil
}
