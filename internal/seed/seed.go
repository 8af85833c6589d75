// Package seed loads the demo accounts and starter catalog.
package seed

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/catalog"
	"github.com/Skotchmaster/storefront/internal/identity"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

const (
	DemoCustomerEmail = "customer@easygames.com"
	DemoPassword      = "Easygames1@"
)

var demoProducts = []catalog.ProductInput{
	{Name: "Monopoly Game", Category: "Game", Price: decimal.RequireFromString("35.00"), StockQty: 20},
	{Name: "Lego Starter Toy", Category: "Toy", Price: decimal.RequireFromString("39.99"), StockQty: 15},
	{Name: "Clean Code Book", Category: "Book", Price: decimal.RequireFromString("49.99"), StockQty: 10},
}

// Run is safe to call on every start: accounts are created only when
// missing and products only into an empty catalog.
func Run(ctx context.Context, users *identity.Service, products *catalog.Service) error {
	l := logging.FromContext(ctx).With("svc", "seed")

	if err := users.EnsureUser(ctx, identity.DemoOwnerEmail, DemoPassword, identity.RoleOwner); err != nil {
		return fmt.Errorf("seed owner: %w", err)
	}
	if err := users.EnsureUser(ctx, DemoCustomerEmail, DemoPassword, identity.RoleCustomer); err != nil {
		return fmt.Errorf("seed customer: %w", err)
	}

	existing, err := products.List(ctx, catalog.Filter{})
	if err != nil {
		return fmt.Errorf("seed products: %w", err)
	}
	if len(existing) > 0 {
		l.Info("seed_skip_products", "existing", len(existing))
		return nil
	}
	for _, in := range demoProducts {
		if _, err := products.CreateProduct(ctx, in); err != nil {
			return fmt.Errorf("seed product %q: %w", in.Name, err)
		}
	}

	l.Info("seed_done", "products", len(demoProducts))
	return nil
}
