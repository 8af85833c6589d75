package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/Skotchmaster/storefront/internal/catalog"
	"github.com/Skotchmaster/storefront/internal/models"
)

var ErrProductNotFound = errors.New("product not found")

// ProductLookup resolves a product for the add-time snapshot. Unknown ids
// are reported with catalog.ErrNotFound.
type ProductLookup interface {
	GetProduct(ctx context.Context, id uint) (*models.Product, error)
}

type Service struct {
	Store    Store
	Products ProductLookup
}

func (s *Service) Get(ctx context.Context, sessionID string) (*Cart, error) {
	return s.Store.Load(ctx, sessionID)
}

func (s *Service) Add(ctx context.Context, sessionID string, productID uint, qty int) (*Cart, error) {
	prod, err := s.Products.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrProductNotFound, productID)
		}
		return nil, err
	}

	c, err := s.Store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	c.Add(prod.ID, prod.Name, prod.Price, qty)
	if err := s.Store.Save(ctx, sessionID, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) UpdateQuantity(ctx context.Context, sessionID string, productID uint, qty int) (*Cart, error) {
	c, err := s.Store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, ok := c.Line(productID); !ok {
		return c, nil
	}
	c.UpdateQuantity(productID, qty)
	if err := s.Store.Save(ctx, sessionID, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) Remove(ctx context.Context, sessionID string, productID uint) (*Cart, error) {
	return s.UpdateQuantity(ctx, sessionID, productID, 0)
}

func (s *Service) Clear(ctx context.Context, sessionID string) error {
	return s.Store.Delete(ctx, sessionID)
}
