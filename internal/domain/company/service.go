package company

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/citamed/citamed/internal/platform/cache"
)

// Service serves the tenant directory. Individual lookups sit in the cache
// for a day; the directory listing for an hour.
type Service struct {
	repo   Repository
	cache  cache.Store
	logger zerolog.Logger
}

func NewService(repo Repository, store cache.Store, logger zerolog.Logger) *Service {
	return &Service{repo: repo, cache: store, logger: logger}
}

// CreateInput is a new tenant registration.
type CreateInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Company, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	now := time.Now().UTC()
	c := &Company{
		ID:        uuid.New(),
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, c); err != nil {
		return nil, err
	}
	s.cache.Clear()
	s.logger.Info().Str("company_id", c.ID.String()).Msg("company registered")
	return c, nil
}

// SetActive toggles a tenant on or off. Deactivating hides nothing
// retroactively; it only gates new activity at the callers.
func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) (*Company, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Active = active
	c.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	s.cache.Clear()
	return c, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Company, error) {
	key := cache.Key("companies", id.String())
	if v, ok := s.cache.Get(key); ok {
		return v.(*Company), nil
	}
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, c, cache.TTLVeryLong)
	return c, nil
}

func (s *Service) List(ctx context.Context) ([]*Company, error) {
	key := cache.Key("companies", "list")
	if v, ok := s.cache.Get(key); ok {
		return v.([]*Company), nil
	}
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, items, cache.TTLLong)
	return items, nil
}
