package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sweet-shop/internal/domain"
	"sweet-shop/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrSweetNotFound     = repository.ErrSweetNotFound
	ErrInsufficientStock = repository.ErrInsufficientStock
	ErrValueOutOfRange   = repository.ErrValueOutOfRange
	ErrInvalidQuantity   = errors.New("quantity must be positive")
)

// SearchFilter narrows a catalog search. Blank strings and nil bounds are ignored;
// everything else is combined with AND. Non-blank strings match as given,
// surrounding whitespace included.
type SearchFilter struct {
	Name     string
	Category string
	MinPrice *float64
	MaxPrice *float64
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Matches reports whether sweet satisfies every active filter
func (f SearchFilter) Matches(sweet *domain.Sweet) bool {
	if !blank(f.Name) && !sweet.NameContains(f.Name) {
		return false
	}
	if !blank(f.Category) && !sweet.InCategory(f.Category) {
		return false
	}
	if f.MinPrice != nil && sweet.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && sweet.Price > *f.MaxPrice {
		return false
	}
	return true
}

// SweetService manages the catalog and its stock
type SweetService interface {
	Create(ctx context.Context, sweet *domain.Sweet) (*domain.Sweet, error)
	List(ctx context.Context) ([]*domain.Sweet, error)
	Search(ctx context.Context, filter SearchFilter) ([]*domain.Sweet, error)
	Update(ctx context.Context, id uuid.UUID, values *domain.Sweet) (*domain.Sweet, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Purchase(ctx context.Context, id uuid.UUID, quantity int) (*domain.Sweet, error)
	Restock(ctx context.Context, id uuid.UUID, quantity int) (*domain.Sweet, error)
}

// InventoryObserver is told about every successful stock change
type InventoryObserver interface {
	SweetPurchased(sweet *domain.Sweet, quantity int)
	SweetRestocked(sweet *domain.Sweet, quantity int)
}

type noopObserver struct{}

func (noopObserver) SweetPurchased(*domain.Sweet, int) {}
func (noopObserver) SweetRestocked(*domain.Sweet, int) {}

type sweetService struct {
	sweetRepo repository.SweetRepository
	observer  InventoryObserver
}

// NewSweetService creates a new instance of SweetService. observer may be nil.
func NewSweetService(sweetRepo repository.SweetRepository, observer InventoryObserver) SweetService {
	if observer == nil {
		observer = noopObserver{}
	}
	return &sweetService{
		sweetRepo: sweetRepo,
		observer:  observer,
	}
}

// Create stores a new sweet under a store-assigned id
func (s *sweetService) Create(ctx context.Context, sweet *domain.Sweet) (*domain.Sweet, error) {
	sweet.ID = uuid.Nil
	if err := s.sweetRepo.Create(ctx, sweet); err != nil {
		return nil, fmt.Errorf("failed to create sweet: %w", err)
	}
	return sweet, nil
}

func (s *sweetService) List(ctx context.Context) ([]*domain.Sweet, error) {
	sweets, err := s.sweetRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sweets: %w", err)
	}
	return sweets, nil
}

// Search serves single-criterion queries from the matching store lookup and
// filters the full catalog for everything else. Both paths agree on results.
func (s *sweetService) Search(ctx context.Context, filter SearchFilter) ([]*domain.Sweet, error) {
	f := filter

	hasName := !blank(f.Name)
	hasCategory := !blank(f.Category)
	hasMin := f.MinPrice != nil
	hasMax := f.MaxPrice != nil

	var (
		sweets []*domain.Sweet
		err    error
	)

	switch {
	case hasName && !hasCategory && !hasMin && !hasMax:
		sweets, err = s.sweetRepo.FindByNameContaining(ctx, f.Name)
	case hasCategory && !hasName && !hasMin && !hasMax:
		sweets, err = s.sweetRepo.FindByCategory(ctx, f.Category)
	case hasMin && hasMax && !hasName && !hasCategory:
		sweets, err = s.sweetRepo.FindByPriceBetween(ctx, *f.MinPrice, *f.MaxPrice)
	default:
		sweets, err = s.filterAll(ctx, f)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to search sweets: %w", err)
	}

	return sweets, nil
}

func (s *sweetService) filterAll(ctx context.Context, f SearchFilter) ([]*domain.Sweet, error) {
	all, err := s.sweetRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]*domain.Sweet, 0, len(all))
	for _, sweet := range all {
		if f.Matches(sweet) {
			matched = append(matched, sweet)
		}
	}
	return matched, nil
}

// Update overwrites name, category, price and quantity of an existing sweet
func (s *sweetService) Update(ctx context.Context, id uuid.UUID, values *domain.Sweet) (*domain.Sweet, error) {
	existing, err := s.sweetRepo.FindByID(ctx, id)
	if err != nil {
		return nil, s.wrapLookup(err)
	}

	existing.Name = values.Name
	existing.Category = values.Category
	existing.Price = values.Price
	existing.Quantity = values.Quantity

	if err := s.sweetRepo.Update(ctx, existing); err != nil {
		return nil, s.wrapLookup(err)
	}
	return existing, nil
}

func (s *sweetService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.sweetRepo.Delete(ctx, id); err != nil {
		return s.wrapLookup(err)
	}
	return nil
}

// Purchase removes quantity units from stock
func (s *sweetService) Purchase(ctx context.Context, id uuid.UUID, quantity int) (*domain.Sweet, error) {
	sweet, err := s.sweetRepo.FindByID(ctx, id)
	if err != nil {
		return nil, s.wrapLookup(err)
	}

	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	if sweet.Stock() < quantity {
		return nil, ErrInsufficientStock
	}

	// The store re-checks stock atomically; a concurrent buyer may still win
	updated, err := s.sweetRepo.AdjustQuantity(ctx, id, -quantity)
	if err != nil {
		return nil, s.wrapLookup(err)
	}

	s.observer.SweetPurchased(updated, quantity)
	return updated, nil
}

// Restock adds quantity units to stock
func (s *sweetService) Restock(ctx context.Context, id uuid.UUID, quantity int) (*domain.Sweet, error) {
	if _, err := s.sweetRepo.FindByID(ctx, id); err != nil {
		return nil, s.wrapLookup(err)
	}

	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	updated, err := s.sweetRepo.AdjustQuantity(ctx, id, quantity)
	if err != nil {
		return nil, s.wrapLookup(err)
	}

	s.observer.SweetRestocked(updated, quantity)
	return updated, nil
}

// wrapLookup passes domain sentinels through untouched and wraps the rest
func (s *sweetService) wrapLookup(err error) error {
	if errors.Is(err, ErrSweetNotFound) || errors.Is(err, ErrInsufficientStock) {
		return err
	}
	return fmt.Errorf("sweet store failure: %w", err)
}
