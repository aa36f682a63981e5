package professional

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/citamed/citamed/internal/platform/cache"
)

// ValidationError reports the required onboarding fields that are missing.
type ValidationError struct {
	MissingFields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.MissingFields, ", "))
}

// Service implements roster management. Mutations clear the cache the same
// way scheduling mutations do.
type Service struct {
	repo   Repository
	cache  cache.Store
	logger zerolog.Logger
}

func NewService(repo Repository, store cache.Store, logger zerolog.Logger) *Service {
	return &Service{repo: repo, cache: store, logger: logger}
}

// OnboardInput is a single onboarding request. Credential fields are
// generated, never accepted from the caller.
type OnboardInput struct {
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Specialty   string    `json:"specialty"`
	CompanyID   uuid.UUID `json:"companyId"`
	WeeklyHours int       `json:"weeklyHours"`
}

// Credentials is the generated login pair. The plaintext password exists
// only in this response; only its hash is stored.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (in OnboardInput) validate() error {
	verr := &ValidationError{}
	if in.Name == "" {
		verr.MissingFields = append(verr.MissingFields, "name")
	}
	if in.Email == "" {
		verr.MissingFields = append(verr.MissingFields, "email")
	}
	if in.Specialty == "" {
		verr.MissingFields = append(verr.MissingFields, "specialty")
	}
	if len(verr.MissingFields) > 0 {
		return verr
	}
	return nil
}

// Onboard registers a professional and generates their credentials.
// A reused email fails with ErrEmailTaken.
func (s *Service) Onboard(ctx context.Context, in OnboardInput) (*Professional, *Credentials, error) {
	if err := in.validate(); err != nil {
		return nil, nil, err
	}

	if _, err := s.repo.GetByEmail(ctx, in.Email); err == nil {
		return nil, nil, ErrEmailTaken
	} else if err != ErrNotFound {
		return nil, nil, err
	}

	creds, hash, err := generateCredentials(in.Email)
	if err != nil {
		return nil, nil, fmt.Errorf("generate credentials: %w", err)
	}

	now := time.Now().UTC()
	p := &Professional{
		ID:           uuid.New(),
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		Specialty:    in.Specialty,
		CompanyID:    in.CompanyID,
		WeeklyHours:  in.WeeklyHours,
		Status:       StatusActive,
		Username:     creds.Username,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if p.WeeklyHours <= 0 {
		p.WeeklyHours = DefaultWeeklyHours
	}

	if err := s.repo.Insert(ctx, p); err != nil {
		return nil, nil, err
	}
	s.cache.Clear()
	s.logger.Info().Str("professional_id", p.ID.String()).Str("company_id", p.CompanyID.String()).Msg("professional onboarded")
	return p, creds, nil
}

// BulkResult is the per-row outcome of a bulk onboarding. Failed rows carry
// the error message; the rest of the batch proceeds.
type BulkResult struct {
	Email        string        `json:"email"`
	Professional *Professional `json:"professional,omitempty"`
	Credentials  *Credentials  `json:"credentials,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// OnboardBulk onboards a batch row by row. Spreadsheet parsing happens in
// the client; this receives the already-structured rows.
func (s *Service) OnboardBulk(ctx context.Context, inputs []OnboardInput) []BulkResult {
	results := make([]BulkResult, 0, len(inputs))
	for _, in := range inputs {
		res := BulkResult{Email: in.Email}
		p, creds, err := s.Onboard(ctx, in)
		if err != nil {
			res.Error = err.Error()
		} else {
			res.Professional = p
			res.Credentials = creds
		}
		results = append(results, res)
	}
	return results
}

// UpdateInput carries a partial roster update. Nil fields are unchanged.
type UpdateInput struct {
	Name        *string  `json:"name"`
	Email       *string  `json:"email"`
	Phone       *string  `json:"phone"`
	Specialty   *string  `json:"specialty"`
	WeeklyHours *int     `json:"weeklyHours"`
	Rating      *float64 `json:"rating"`
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*Professional, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Email != nil {
		p.Email = *in.Email
	}
	if in.Phone != nil {
		p.Phone = *in.Phone
	}
	if in.Specialty != nil {
		p.Specialty = *in.Specialty
	}
	if in.WeeklyHours != nil {
		p.WeeklyHours = *in.WeeklyHours
	}
	if in.Rating != nil {
		p.Rating = *in.Rating
	}
	p.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	s.cache.Clear()
	return p, nil
}

// Deactivate takes the professional off the roster without destroying the
// record. This is the normal removal path.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) (*Professional, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Status = StatusInactive
	p.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	s.cache.Clear()
	return p, nil
}

// Delete permanently removes the record. Admin only; existing appointments
// keep their denormalized doctor fields.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.Clear()
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Professional, error) {
	return s.repo.GetByID(ctx, id)
}

// List pages through the roster, serving repeat reads from cache.
func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Professional, int, error) {
	key := listCacheKey(f, limit, offset)
	if v, ok := s.cache.Get(key); ok {
		page := v.(cachedPage)
		return page.items, page.total, nil
	}

	items, total, err := s.repo.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	s.cache.Set(key, cachedPage{items: items, total: total}, cache.TTLMedium)
	return items, total, nil
}

type cachedPage struct {
	items []*Professional
	total int
}

func listCacheKey(f Filter, limit, offset int) string {
	parts := []string{"professionals", "list"}
	if f.CompanyID != nil {
		parts = append(parts, f.CompanyID.String())
	}
	if f.Status != nil {
		parts = append(parts, string(*f.Status))
	}
	if f.Specialty != nil {
		parts = append(parts, *f.Specialty)
	}
	parts = append(parts, fmt.Sprintf("%d:%d", limit, offset))
	return cache.Key(parts...)
}

const passwordAlphabet = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"
const passwordLength = 12

// generateCredentials derives the username from the email local part and
// draws a random password, returning the plaintext pair and the bcrypt hash.
func generateCredentials(email string) (*Credentials, string, error) {
	username := email
	if at := strings.Index(email, "@"); at > 0 {
		username = email[:at]
	}

	pw := make([]byte, passwordLength)
	for i := range pw {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(passwordAlphabet))))
		if err != nil {
			return nil, "", err
		}
		pw[i] = passwordAlphabet[n.Int64()]
	}

	hash, err := bcrypt.GenerateFromPassword(pw, bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}
	return &Credentials{Username: username, Password: string(pw)}, string(hash), nil
}
