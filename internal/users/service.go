package users

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/wolfman30/vetclinic-platform/internal/apperr"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

var (
	ErrSuperuserRequired = apperr.Forbidden("superuser privileges required")
	ErrWrongPassword     = apperr.Validation("current password is incorrect")
	ErrSelfDeactivate    = apperr.Validation("you cannot deactivate your own account")
)

// Service applies account rules on top of a Repository.
type Service struct {
	repo     Repository
	logger   *logging.Logger
	hashCost int
}

// Option customizes a Service.
type Option func(*Service)

// WithHashCost overrides the bcrypt cost.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

func NewService(repo Repository, logger *logging.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{repo: repo, logger: logger, hashCost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create adds an account. The first account of a tenant may be created by
// anyone and is always a superuser; afterwards only superusers may add users.
func (s *Service) Create(ctx context.Context, tenantID, actorID string, in CreateInput) (*User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	n, err := s.repo.Count(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	superuser := in.IsSuperuser
	if n == 0 {
		superuser = true
	} else if _, err := s.requireSuperuser(ctx, tenantID, actorID); err != nil {
		return nil, err
	}

	u := &User{
		TenantID:    tenantID,
		Email:       email,
		FullName:    strings.TrimSpace(in.FullName),
		IsActive:    true,
		IsSuperuser: superuser,
	}
	if err := u.SetPassword(in.Password, s.hashCost); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info("user created", "tenant_id", tenantID, "user_id", u.ID, "superuser", u.IsSuperuser)
	return u, nil
}

// Me returns the calling user.
func (s *Service) Me(ctx context.Context, tenantID, actorID string) (*User, error) {
	if actorID == "" {
		return nil, apperr.Unauthorized("authentication required")
	}
	return s.repo.Get(ctx, tenantID, actorID)
}

// Get returns a user to themselves or to a superuser.
func (s *Service) Get(ctx context.Context, tenantID, actorID, id string) (*User, error) {
	if id != actorID {
		if _, err := s.requireSuperuser(ctx, tenantID, actorID); err != nil {
			return nil, err
		}
	}
	return s.repo.Get(ctx, tenantID, id)
}

// List is restricted to superusers.
func (s *Service) List(ctx context.Context, tenantID, actorID string, skip, limit int) ([]*User, error) {
	if _, err := s.requireSuperuser(ctx, tenantID, actorID); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, tenantID, skip, limit)
}

// Update changes a profile. Users may edit themselves; superusers may edit
// anyone and grant or revoke superuser.
func (s *Service) Update(ctx context.Context, tenantID, actorID, id string, in UpdateInput) (*User, error) {
	self := id == actorID
	if !self || in.IsSuperuser != nil {
		if _, err := s.requireSuperuser(ctx, tenantID, actorID); err != nil {
			return nil, err
		}
	}
	u, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if in.Email != nil {
		email, err := normalizeEmail(*in.Email)
		if err != nil {
			return nil, err
		}
		u.Email = email
	}
	if in.FullName != nil {
		u.FullName = strings.TrimSpace(*in.FullName)
	}
	if in.Password != nil {
		if self && (in.CurrentPassword == nil || !u.CheckPassword(*in.CurrentPassword)) {
			return nil, ErrWrongPassword
		}
		if err := u.SetPassword(*in.Password, s.hashCost); err != nil {
			return nil, err
		}
	}
	if in.IsSuperuser != nil {
		u.IsSuperuser = *in.IsSuperuser
	}
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Deactivate disables another user's account.
func (s *Service) Deactivate(ctx context.Context, tenantID, actorID, id string) (*User, error) {
	if id == actorID {
		return nil, ErrSelfDeactivate
	}
	if _, err := s.requireSuperuser(ctx, tenantID, actorID); err != nil {
		return nil, err
	}
	u, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	u.IsActive = false
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info("user deactivated", "tenant_id", tenantID, "user_id", id, "actor_id", actorID)
	return u, nil
}

func (s *Service) requireSuperuser(ctx context.Context, tenantID, actorID string) (*User, error) {
	if actorID == "" {
		return nil, apperr.Unauthorized("authentication required")
	}
	actor, err := s.repo.Get(ctx, tenantID, actorID)
	if err != nil {
		return nil, ErrSuperuserRequired
	}
	if !actor.IsActive || !actor.IsSuperuser {
		return nil, ErrSuperuserRequired
	}
	return actor, nil
}
