package catalog

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/testdb"
)

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []any
}

func (p *recordingPublisher) Publish(_ context.Context, topic, _ string, event any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
}

type fakeIndex struct {
	indexed map[uint]models.Product
	deleted []uint
	err     error
}

func (f *fakeIndex) IndexProduct(_ context.Context, p models.Product) error {
	if f.err != nil {
		return f.err
	}
	if f.indexed == nil {
		f.indexed = map[uint]models.Product{}
	}
	f.indexed[p.ID] = p
	return nil
}

func (f *fakeIndex) DeleteProduct(_ context.Context, id uint) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

func newTestService(t *testing.T) (*Service, *recordingPublisher, *fakeIndex) {
	t.Helper()
	pub := &recordingPublisher{}
	idx := &fakeIndex{}
	return &Service{Repo: &GormRepo{DB: testdb.Open(t)}, Events: pub, Search: idx}, pub, idx
}

func input(name, category, price string, stock int) ProductInput {
	return ProductInput{Name: name, Category: category, Price: decimal.RequireFromString(price), StockQty: stock}
}

func TestCreateProduct_AssignsCreatedAtAndPublishes(t *testing.T) {
	svc, pub, idx := newTestService(t)
	ctx := context.Background()

	before := time.Now().UTC().Add(-time.Second)
	p, err := svc.CreateProduct(ctx, input("Monopoly", "Game", "35.00", 20))
	require.NoError(t, err)

	assert.NotZero(t, p.ID)
	assert.True(t, p.CreatedAt.After(before))
	require.Len(t, pub.events, 1)
	assert.Equal(t, events.TopicProducts, pub.topics[0])
	ev := pub.events[0].(events.ProductEvent)
	assert.Equal(t, events.ProductCreated, ev.Type)
	assert.Equal(t, p.ID, ev.ProductID)
	assert.Contains(t, idx.indexed, p.ID)
}

func TestCreateProduct_Validation(t *testing.T) {
	svc, pub, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   ProductInput
	}{
		{"empty name", input("  ", "Game", "1", 1)},
		{"long name", input(strings.Repeat("x", 101), "Game", "1", 1)},
		{"empty category", input("X", "", "1", 1)},
		{"unknown category", input("X", "Puzzle", "1", 1)},
		{"zero price", input("X", "Game", "0", 1)},
		{"price too high", input("X", "Game", "100000.01", 1)},
		{"negative stock", input("X", "Game", "1", -1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateProduct(ctx, tt.in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
	assert.Empty(t, pub.events)

	_, err := svc.CreateProduct(ctx, input(strings.Repeat("x", 100), "Toy", "100000", 0))
	assert.NoError(t, err)
}

func TestList_FilterAndNewestFirst(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for _, in := range []ProductInput{
		input("Monopoly Game", "Game", "35", 20),
		input("Lego Starter Toy", "Toy", "39.99", 15),
		input("Clean Code Book", "Book", "49.99", 10),
		input("Board Game Night", "Game", "12.50", 3),
	} {
		_, err := svc.CreateProduct(ctx, in)
		require.NoError(t, err)
	}

	all, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "Board Game Night", all[0].Name)
	assert.Equal(t, "Monopoly Game", all[3].Name)

	games, err := svc.List(ctx, Filter{Category: "Game"})
	require.NoError(t, err)
	require.Len(t, games, 2)

	byName, err := svc.List(ctx, Filter{Query: "GAME"})
	require.NoError(t, err)
	require.Len(t, byName, 2)

	both, err := svc.List(ctx, Filter{Category: "Game", Query: "monopoly"})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "Monopoly Game", both[0].Name)

	none, err := svc.List(ctx, Filter{Query: "%"})
	require.NoError(t, err)
	assert.Empty(t, none)

	cats, err := svc.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Book", "Game", "Toy"}, cats)
}

func TestPatchProduct_KeepsCreatedAt(t *testing.T) {
	svc, pub, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.CreateProduct(ctx, input("Clean Code", "Book", "49.99", 10))
	require.NoError(t, err)
	stored, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)

	name := "Clean Code 2nd Ed."
	price := decimal.RequireFromString("54.50")
	stock := 4
	updated, err := svc.PatchProduct(ctx, p.ID, ProductPatch{Name: &name, Price: &price, StockQty: &stock})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)

	reloaded, err := svc.Repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, name, reloaded.Name)
	assert.True(t, price.Equal(reloaded.Price))
	assert.Equal(t, 4, reloaded.StockQty)
	assert.True(t, stored.CreatedAt.Equal(reloaded.CreatedAt))

	bad := -1
	_, err = svc.PatchProduct(ctx, p.ID, ProductPatch{StockQty: &bad})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.PatchProduct(ctx, 999, ProductPatch{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)

	require.Len(t, pub.events, 2)
	assert.Equal(t, events.ProductUpdated, pub.events[1].(events.ProductEvent).Type)
}

func TestPatchProduct_KeepsConcurrentStockDecrement(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	db := svc.Repo.DB

	p, err := svc.CreateProduct(ctx, input("Monopoly", "Game", "35.00", 10))
	require.NoError(t, err)

	// A checkout commits right after the patch has read the product.
	var once sync.Once
	require.NoError(t, db.Callback().Query().After("gorm:query").Register("test:checkout_commit", func(tx *gorm.DB) {
		if tx.Statement.Table != "products" {
			return
		}
		once.Do(func() {
			require.NoError(t, db.Exec("UPDATE products SET stock_qty = stock_qty - ? WHERE id = ? AND stock_qty >= ?", 3, p.ID, 3).Error)
		})
	}))

	name := "Monopoly Deluxe"
	updated, err := svc.PatchProduct(ctx, p.ID, ProductPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, 7, updated.StockQty)

	reloaded, err := svc.Repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, name, reloaded.Name)
	assert.Equal(t, 7, reloaded.StockQty)
}

func TestGetProduct_CoalescedCallerCancellation(t *testing.T) {
	svc, _, _ := newTestService(t)
	p, err := svc.CreateProduct(context.Background(), input("Lego", "Toy", "39.99", 5))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lego", got.Name)
}

func TestDeleteProduct(t *testing.T) {
	svc, pub, idx := newTestService(t)
	ctx := context.Background()

	p, err := svc.CreateProduct(ctx, input("Lego", "Toy", "39.99", 15))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteProduct(ctx, p.ID))
	_, err = svc.GetProduct(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.DeleteProduct(ctx, p.ID), ErrNotFound)

	assert.Equal(t, []uint{p.ID}, idx.deleted)
	assert.Equal(t, events.ProductDeleted, pub.events[len(pub.events)-1].(events.ProductEvent).Type)
}

func TestSearchFailureDoesNotFailWrite(t *testing.T) {
	svc, _, idx := newTestService(t)
	idx.err = errors.New("es unavailable")

	p, err := svc.CreateProduct(context.Background(), input("Lego", "Toy", "39.99", 15))
	require.NoError(t, err)
	assert.NotZero(t, p.ID)
}

func TestGetMany(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.CreateProduct(ctx, input("A", "Toy", "1", 1))
	require.NoError(t, err)
	b, err := svc.CreateProduct(ctx, input("B", "Toy", "2", 2))
	require.NoError(t, err)

	got, err := svc.GetMany(ctx, []uint{a.ID, b.ID, 404})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	empty, err := svc.GetMany(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
