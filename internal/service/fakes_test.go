package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"sweet-shop/internal/domain"
	"sweet-shop/internal/repository"

	"github.com/google/uuid"
)

// In-memory repositories for testing
type mockUserRepository struct {
	users map[string]*domain.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		users: make(map[string]*domain.User),
	}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if _, exists := m.users[user.Email]; exists {
		return repository.ErrUserAlreadyExists
	}
	user.ID = uuid.New()
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	m.users[user.Email] = user
	return nil
}

func (m *mockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, exists := m.users[email]
	return exists, nil
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, exists := m.users[email]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

type mockSweetRepository struct {
	mu      sync.Mutex
	sweets  map[uuid.UUID]*domain.Sweet
	seq     int
	lookups []string
}

func newMockSweetRepository() *mockSweetRepository {
	return &mockSweetRepository{
		sweets: make(map[uuid.UUID]*domain.Sweet),
	}
}

// seed stores sweet under a fixed id, bypassing Create
func (m *mockSweetRepository) seed(sweet *domain.Sweet) *domain.Sweet {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sweet.ID == uuid.Nil {
		sweet.ID = uuid.New()
	}
	m.seq++
	sweet.CreatedAt = time.Unix(int64(m.seq), 0)
	m.sweets[sweet.ID] = copySweet(sweet)
	return sweet
}

func copySweet(s *domain.Sweet) *domain.Sweet {
	c := *s
	if s.Quantity != nil {
		c.Quantity = domain.IntPtr(*s.Quantity)
	}
	return &c
}

func (m *mockSweetRepository) record(lookup string) {
	m.lookups = append(m.lookups, lookup)
}

func (m *mockSweetRepository) Create(ctx context.Context, sweet *domain.Sweet) error {
	sweet.ID = uuid.New()
	m.seed(sweet)
	return nil
}

func (m *mockSweetRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Sweet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sweet, ok := m.sweets[id]
	if !ok {
		return nil, repository.ErrSweetNotFound
	}
	return copySweet(sweet), nil
}

func (m *mockSweetRepository) filter(keep func(*domain.Sweet) bool) []*domain.Sweet {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Sweet{}
	for _, s := range m.sweets {
		if keep(s) {
			out = append(out, copySweet(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *mockSweetRepository) List(ctx context.Context) ([]*domain.Sweet, error) {
	m.record("list")
	return m.filter(func(*domain.Sweet) bool { return true }), nil
}

func (m *mockSweetRepository) FindByNameContaining(ctx context.Context, fragment string) ([]*domain.Sweet, error) {
	m.record("name")
	return m.filter(func(s *domain.Sweet) bool {
		return strings.Contains(strings.ToLower(s.Name), strings.ToLower(fragment))
	}), nil
}

func (m *mockSweetRepository) FindByCategory(ctx context.Context, category string) ([]*domain.Sweet, error) {
	m.record("category")
	return m.filter(func(s *domain.Sweet) bool {
		return strings.ToLower(s.Category) == strings.ToLower(category)
	}), nil
}

func (m *mockSweetRepository) FindByPriceBetween(ctx context.Context, minPrice, maxPrice float64) ([]*domain.Sweet, error) {
	m.record("price")
	return m.filter(func(s *domain.Sweet) bool {
		return s.Price >= minPrice && s.Price <= maxPrice
	}), nil
}

func (m *mockSweetRepository) Update(ctx context.Context, sweet *domain.Sweet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sweets[sweet.ID]; !ok {
		return repository.ErrSweetNotFound
	}
	m.sweets[sweet.ID] = copySweet(sweet)
	return nil
}

func (m *mockSweetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sweets[id]; !ok {
		return repository.ErrSweetNotFound
	}
	delete(m.sweets, id)
	return nil
}

func (m *mockSweetRepository) AdjustQuantity(ctx context.Context, id uuid.UUID, delta int) (*domain.Sweet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sweet, ok := m.sweets[id]
	if !ok {
		return nil, repository.ErrSweetNotFound
	}
	next := sweet.Stock() + delta
	if next < 0 {
		return nil, repository.ErrInsufficientStock
	}
	sweet.SetStock(next)
	return copySweet(sweet), nil
}

type recordingObserver struct {
	purchased int
	restocked int
}

func (r *recordingObserver) SweetPurchased(_ *domain.Sweet, quantity int) { r.purchased += quantity }
func (r *recordingObserver) SweetRestocked(_ *domain.Sweet, quantity int) { r.restocked += quantity }
