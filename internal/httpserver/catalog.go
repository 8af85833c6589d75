package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/catalog"
	"github.com/Skotchmaster/storefront/internal/search"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/internal/util"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type Searcher interface {
	Search(ctx context.Context, query string, from, size int) (int64, []search.Document, error)
}

type CatalogHTTP struct {
	Svc *catalog.Service
	// Search is optional. Without it, /catalog/search falls back to a name
	// match in the database.
	Search Searcher
}

func (h *CatalogHTTP) GetProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.get_products")

	items, err := h.Svc.List(ctx, catalog.Filter{
		Category: strings.TrimSpace(c.QueryParam("category")),
		Query:    strings.TrimSpace(c.QueryParam("q")),
	})
	if err != nil {
		l.Error("get_products_error", "status", 500, "reason", "cannot list products", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list products")
	}
	return c.JSON(http.StatusOK, items)
}

func (h *CatalogHTTP) GetProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.get_product")

	id, err := parseID(c)
	if err != nil {
		l.Warn("get_product_error", "status", 400, "reason", "bad id", "error", err)
		return badRequest(err.Error())
	}

	prod, err := h.Svc.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			l.Warn("get_product_error", "status", 404, "reason", "product not found", "product_id", id)
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		l.Error("get_product_error", "status", 500, "reason", "cannot get product", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot get product")
	}
	return c.JSON(http.StatusOK, prod)
}

func (h *CatalogHTTP) GetCategories(c echo.Context) error {
	ctx := c.Request().Context()
	cats, err := h.Svc.Categories(ctx)
	if err != nil {
		logging.FromContext(ctx).Error("get_categories_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list categories")
	}
	return c.JSON(http.StatusOK, cats)
}

func (h *CatalogHTTP) SearchProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.search")

	q := strings.TrimSpace(c.QueryParam("q"))
	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	offset, limit := util.Calculate(page, util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize))
	if page < 1 {
		page = 1
	}

	var (
		total int64
		docs  []search.Document
		err   error
	)
	if h.Search != nil {
		total, docs, err = h.Search.Search(ctx, q, offset, limit)
	} else {
		total, docs, err = h.searchDB(ctx, q, offset, limit)
	}
	if err != nil {
		l.Error("search_error", "status", 500, "reason", "search failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "search failed")
	}
	if docs == nil {
		docs = []search.Document{}
	}

	return c.JSON(http.StatusOK, transport.SearchResponse{
		Data: docs,
		Meta: transport.PageMeta{
			Page:       page,
			Size:       limit,
			Total:      total,
			TotalPages: util.TotalPages(total, limit),
			HasPrev:    page > 1,
			HasNext:    int64(offset+limit) < total,
		},
	})
}

func (h *CatalogHTTP) searchDB(ctx context.Context, q string, offset, limit int) (int64, []search.Document, error) {
	items, err := h.Svc.List(ctx, catalog.Filter{Query: q})
	if err != nil {
		return 0, nil, err
	}
	total := int64(len(items))
	if offset >= len(items) {
		return total, nil, nil
	}
	items = items[offset:min(offset+limit, len(items))]
	docs := make([]search.Document, 0, len(items))
	for _, p := range items {
		docs = append(docs, search.NewDocument(p))
	}
	return total, docs, nil
}

func (h *CatalogHTTP) CreateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.create_product")

	var req transport.CreateProductRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("product_create_error", "status", 400, "reason", "invalid body", "error", err)
		return badRequest("invalid body")
	}

	prod, err := h.Svc.CreateProduct(ctx, catalog.ProductInput{
		Name:     req.Name,
		Category: req.Category,
		Price:    req.Price,
		StockQty: req.StockQty,
	})
	if err != nil {
		if errors.Is(err, catalog.ErrValidation) {
			l.Warn("product_create_error", "status", 400, "reason", "validation", "error", err)
			return badRequest(err.Error())
		}
		l.Error("product_create_error", "status", 500, "reason", "cannot add product to db", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot add product to db")
	}

	l.Info("create_product_success", "product_id", prod.ID)
	return c.JSON(http.StatusCreated, prod)
}

func (h *CatalogHTTP) PatchProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.patch_product")

	id, err := parseID(c)
	if err != nil {
		l.Warn("product_patch_error", "status", 400, "reason", "bad id", "error", err)
		return badRequest(err.Error())
	}

	var req transport.PatchProductRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("product_patch_error", "status", 400, "reason", "invalid body", "error", err)
		return badRequest("invalid body")
	}

	prod, err := h.Svc.PatchProduct(ctx, id, catalog.ProductPatch{
		Name:     req.Name,
		Category: req.Category,
		Price:    req.Price,
		StockQty: req.StockQty,
	})
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			l.Warn("product_patch_error", "status", 404, "reason", "product not found", "product_id", id)
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		case errors.Is(err, catalog.ErrValidation):
			l.Warn("product_patch_error", "status", 400, "reason", "validation", "error", err)
			return badRequest(err.Error())
		default:
			l.Error("product_patch_error", "status", 500, "reason", "cannot update product", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot update product")
		}
	}

	l.Info("patch_product_success", "product_id", id)
	return c.JSON(http.StatusOK, prod)
}

func (h *CatalogHTTP) DeleteProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.delete_product")

	id, err := parseID(c)
	if err != nil {
		l.Warn("product_delete_error", "status", 400, "reason", "bad id", "error", err)
		return badRequest(err.Error())
	}
	if err := h.Svc.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			l.Warn("product_delete_error", "status", 404, "reason", "product not found", "product_id", id)
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		l.Error("product_delete_error", "status", 500, "reason", "cannot delete product", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot delete product")
	}

	l.Info("delete_product_success", "product_id", id)
	return c.NoContent(http.StatusNoContent)
}
