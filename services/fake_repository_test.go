package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/cppla/perkclaims/models"
	"github.com/cppla/perkclaims/repository"
)

// memRepo is an in-memory ClaimRepository. Transactions are serialized.
type memRepo struct {
	txMu   sync.Mutex
	mu     sync.Mutex
	claims map[uint]*models.Claim
	nextID uint
	clock  time.Time
}

func newMemRepo() *memRepo {
	return &memRepo{
		claims: map[uint]*models.Claim{},
		clock:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (r *memRepo) WithTx(ctx context.Context, fn func(repo repository.ClaimRepository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()
	return fn(r)
}

// seed stores a claim as-is, bypassing every rule.
func (r *memRepo) seed(c models.Claim) *models.Claim {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c.ID = r.nextID
	r.clock = r.clock.Add(time.Second)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.clock
	}
	c.UpdatedAt = c.CreatedAt
	r.claims[c.ID] = &c
	out := c
	return &out
}

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.claims)
}

func (r *memRepo) Create(ctx context.Context, claim *models.Claim) error {
	stored := r.seed(*claim)
	*claim = *stored
	return nil
}

func (r *memRepo) GetByID(ctx context.Context, id uint) (*models.Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.claims[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (r *memRepo) GetByIDForUpdate(ctx context.Context, id uint) (*models.Claim, error) {
	return r.GetByID(ctx, id)
}

func (r *memRepo) findActive(match func(c *models.Claim) bool, excludeID uint) *models.Claim {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.sortedLocked() {
		if c.ID != excludeID && c.Status.IsActive() && match(c) {
			out := *c
			return &out
		}
	}
	return nil
}

func (r *memRepo) FindActiveByUserPerk(ctx context.Context, userID, perkID string, excludeID uint) (*models.Claim, error) {
	return r.findActive(func(c *models.Claim) bool {
		return c.UserID == userID && c.PerkID == perkID
	}, excludeID), nil
}

func (r *memRepo) FindActiveBySubdomain(ctx context.Context, subdomain string, excludeID uint) (*models.Claim, error) {
	return r.findActive(func(c *models.Claim) bool {
		return strings.EqualFold(c.PreferredSubdomain, subdomain)
	}, excludeID), nil
}

func (r *memRepo) ListByUser(ctx context.Context, userID string) ([]models.Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Claim
	sorted := r.sortedLocked()
	for i := len(sorted) - 1; i >= 0; i-- {
		if sorted[i].UserID == userID {
			out = append(out, *sorted[i])
		}
	}
	return out, nil
}

func (r *memRepo) List(ctx context.Context, filter repository.ListFilter) ([]models.Claim, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []models.Claim
	for _, c := range r.sortedLocked() {
		if filter.Status == "" || c.Status == filter.Status {
			matched = append(matched, *c)
		}
	}
	total := int64(len(matched))
	if filter.Offset >= len(matched) {
		return nil, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[filter.Offset:end], total, nil
}

func (r *memRepo) UpdateReview(ctx context.Context, id uint, review repository.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.claims[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.Status = review.Status
	c.ReviewerNotes = review.Notes
	reviewer := review.ReviewerID
	c.ReviewedBy = &reviewer
	at := review.ReviewedAt
	c.ReviewedAt = &at
	c.UpdatedAt = at
	return nil
}

func (r *memRepo) CountByStatus(ctx context.Context) (map[models.ClaimStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[models.ClaimStatus]int64{}
	for _, c := range r.claims {
		counts[c.Status]++
	}
	return counts, nil
}

// sortedLocked orders claims by creation, oldest first.
func (r *memRepo) sortedLocked() []*models.Claim {
	out := make([]*models.Claim, 0, len(r.claims))
	for _, c := range r.claims {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// mockRepo is a testify mock of ClaimRepository. WithTx runs fn against the
// mock itself.
type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) WithTx(ctx context.Context, fn func(repo repository.ClaimRepository) error) error {
	return fn(m)
}

func (m *mockRepo) Create(ctx context.Context, claim *models.Claim) error {
	return m.Called(ctx, claim).Error(0)
}

func (m *mockRepo) GetByID(ctx context.Context, id uint) (*models.Claim, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*models.Claim)
	return c, args.Error(1)
}

func (m *mockRepo) GetByIDForUpdate(ctx context.Context, id uint) (*models.Claim, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*models.Claim)
	return c, args.Error(1)
}

func (m *mockRepo) FindActiveByUserPerk(ctx context.Context, userID, perkID string, excludeID uint) (*models.Claim, error) {
	args := m.Called(ctx, userID, perkID, excludeID)
	c, _ := args.Get(0).(*models.Claim)
	return c, args.Error(1)
}

func (m *mockRepo) FindActiveBySubdomain(ctx context.Context, subdomain string, excludeID uint) (*models.Claim, error) {
	args := m.Called(ctx, subdomain, excludeID)
	c, _ := args.Get(0).(*models.Claim)
	return c, args.Error(1)
}

func (m *mockRepo) ListByUser(ctx context.Context, userID string) ([]models.Claim, error) {
	args := m.Called(ctx, userID)
	c, _ := args.Get(0).([]models.Claim)
	return c, args.Error(1)
}

func (m *mockRepo) List(ctx context.Context, filter repository.ListFilter) ([]models.Claim, int64, error) {
	args := m.Called(ctx, filter)
	c, _ := args.Get(0).([]models.Claim)
	return c, args.Get(1).(int64), args.Error(2)
}

func (m *mockRepo) UpdateReview(ctx context.Context, id uint, review repository.Review) error {
	return m.Called(ctx, id, review).Error(0)
}

func (m *mockRepo) CountByStatus(ctx context.Context) (map[models.ClaimStatus]int64, error) {
	args := m.Called(ctx)
	c, _ := args.Get(0).(map[models.ClaimStatus]int64)
	return c, args.Error(1)
}

type recordingNotifier struct {
	mu     sync.Mutex
	claims []models.Claim
}

func (n *recordingNotifier) ClaimReviewed(ctx context.Context, claim models.Claim) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.claims = append(n.claims, claim)
}
