package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

var (
	ErrValidation = errors.New("validation")
	ErrNotFound   = errors.New("product not found")
)

const (
	maxNameLen     = 100
	maxCategoryLen = 20
)

var (
	minPrice = decimal.RequireFromString("0.01")
	maxPrice = decimal.NewFromInt(100000)
)

// DefaultCategories are the categories the storefront sells today.
var DefaultCategories = []string{"Book", "Game", "Toy"}

type Filter struct {
	Category string
	Query    string
}

type ProductInput struct {
	Name     string
	Category string
	Price    decimal.Decimal
	StockQty int
}

type ProductPatch struct {
	Name     *string
	Category *string
	Price    *decimal.Decimal
	StockQty *int
}

type Indexer interface {
	IndexProduct(ctx context.Context, p models.Product) error
	DeleteProduct(ctx context.Context, id uint) error
}

type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any)
}

type Service struct {
	Repo *GormRepo

	// Categories accepted on create and update; DefaultCategories when empty.
	Allowed []string

	// Search and Events are optional side channels. Failures there are
	// logged and never fail the catalog write.
	Search Indexer
	Events Publisher

	sf singleflight.Group
}

func (s *Service) List(ctx context.Context, f Filter) ([]models.Product, error) {
	return s.Repo.List(ctx, f)
}

func (s *Service) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	// shared by coalesced callers, so one caller's cancellation must not fail the rest
	shared := context.WithoutCancel(ctx)
	v, err, _ := s.sf.Do(strconv.FormatUint(uint64(id), 10), func() (any, error) {
		return s.Repo.GetProduct(shared, id)
	})
	if err != nil {
		return nil, err
	}
	p := *v.(*models.Product)
	return &p, nil
}

func (s *Service) GetMany(ctx context.Context, ids []uint) ([]models.Product, error) {
	return s.Repo.GetMany(ctx, ids)
}

func (s *Service) Categories(ctx context.Context) ([]string, error) {
	return s.Repo.Categories(ctx)
}

func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	prod := &models.Product{
		Name:     strings.TrimSpace(in.Name),
		Category: strings.TrimSpace(in.Category),
		Price:    in.Price,
		StockQty: in.StockQty,
	}
	if err := s.validate(prod); err != nil {
		return nil, err
	}
	if err := s.Repo.CreateProduct(ctx, prod); err != nil {
		return nil, err
	}

	s.afterWrite(ctx, events.ProductCreated, prod)
	return prod, nil
}

func (s *Service) PatchProduct(ctx context.Context, id uint, patch ProductPatch) (*models.Product, error) {
	prod, err := s.Repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	cols := map[string]any{}
	if patch.Name != nil {
		prod.Name = strings.TrimSpace(*patch.Name)
		cols["name"] = prod.Name
	}
	if patch.Category != nil {
		prod.Category = strings.TrimSpace(*patch.Category)
		cols["category"] = prod.Category
	}
	if patch.Price != nil {
		prod.Price = *patch.Price
		cols["price"] = prod.Price
	}
	if patch.StockQty != nil {
		prod.StockQty = *patch.StockQty
		cols["stock_qty"] = prod.StockQty
	}
	if err := s.validate(prod); err != nil {
		return nil, err
	}

	if err := s.Repo.UpdateProduct(ctx, id, cols); err != nil {
		return nil, err
	}
	if _, touched := cols["stock_qty"]; !touched {
		// the read above may predate a checkout; report the committed stock
		if fresh, err := s.Repo.GetProduct(ctx, id); err == nil {
			prod.StockQty = fresh.StockQty
		}
	}

	s.afterWrite(ctx, events.ProductUpdated, prod)
	return prod, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id uint) error {
	if err := s.Repo.DeleteProduct(ctx, id); err != nil {
		return err
	}

	if s.Events != nil {
		s.Events.Publish(ctx, events.TopicProducts, strconv.FormatUint(uint64(id), 10), events.ProductEvent{
			Type:      events.ProductDeleted,
			ProductID: id,
		})
	}
	if s.Search != nil {
		if err := s.Search.DeleteProduct(ctx, id); err != nil {
			logging.FromContext(ctx).Warn("search_delete_error", "product_id", id, "error", err)
		}
	}
	return nil
}

func (s *Service) validate(p *models.Product) error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if utf8.RuneCountInString(p.Name) > maxNameLen {
		return fmt.Errorf("%w: name must be at most %d characters", ErrValidation, maxNameLen)
	}
	if p.Category == "" {
		return fmt.Errorf("%w: category is required", ErrValidation)
	}
	if utf8.RuneCountInString(p.Category) > maxCategoryLen {
		return fmt.Errorf("%w: category must be at most %d characters", ErrValidation, maxCategoryLen)
	}
	allowed := s.Allowed
	if len(allowed) == 0 {
		allowed = DefaultCategories
	}
	if !slices.Contains(allowed, p.Category) {
		return fmt.Errorf("%w: unknown category %q", ErrValidation, p.Category)
	}
	if p.Price.LessThan(minPrice) || p.Price.GreaterThan(maxPrice) {
		return fmt.Errorf("%w: price must be between %s and %s", ErrValidation, minPrice, maxPrice)
	}
	if p.StockQty < 0 {
		return fmt.Errorf("%w: stock quantity cannot be negative", ErrValidation)
	}
	return nil
}

func (s *Service) afterWrite(ctx context.Context, kind string, p *models.Product) {
	if s.Events != nil {
		s.Events.Publish(ctx, events.TopicProducts, strconv.FormatUint(uint64(p.ID), 10), events.ProductEvent{
			Type:      kind,
			ProductID: p.ID,
			Name:      p.Name,
			Category:  p.Category,
			Price:     p.Price,
			StockQty:  p.StockQty,
		})
	}
	if s.Search != nil {
		if err := s.Search.IndexProduct(ctx, *p); err != nil {
			logging.FromContext(ctx).Warn("search_index_error", "product_id", p.ID, "error", err)
		}
	}
}
