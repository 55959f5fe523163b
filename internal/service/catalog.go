package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/transport"
)

// ProductIndex is the external full-text index of the catalog.
type ProductIndex interface {
	Search(ctx context.Context, query string, from, size int) (int64, []models.Product, error)
	Put(ctx context.Context, p *models.Product) error
}

type CatalogService struct {
	Repo  *repo.GormRepo
	Index ProductIndex
}

// GetProduct returns an active product. Inactive products are hidden.
func (s *CatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	p, err := s.Repo.GetProduct(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	return p, nil
}

func (s *CatalogService) ListProducts(ctx context.Context, offset, limit int) (int64, []models.Product, error) {
	return s.Repo.ListActiveProducts(ctx, offset, limit)
}

// SearchProducts asks the search index first and falls back to a database
// name match when the index is missing or failing. Index hits are replaced by
// the live rows, so price, stock and active state never come from the index.
func (s *CatalogService) SearchProducts(ctx context.Context, q string, offset, limit int) (int64, []models.Product, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return 0, nil, fmt.Errorf("query required: %w", ErrValidation)
	}

	if s.Index != nil {
		total, hits, err := s.Index.Search(ctx, q, offset, limit)
		if err == nil {
			items, err := s.liveProducts(ctx, hits)
			if err != nil {
				return 0, nil, err
			}
			return total, items, nil
		}
		logging.FromContext(ctx).Warn("search_index_failed", "reason", "falling back to database", "error", err)
	}
	return s.Repo.SearchProductsByName(ctx, q, offset, limit)
}

// liveProducts keeps the index order and drops hits that are gone or inactive.
func (s *CatalogService) liveProducts(ctx context.Context, hits []models.Product) ([]models.Product, error) {
	ids := make([]uuid.UUID, len(hits))
	for i := range hits {
		ids[i] = hits[i].ID
	}
	rows, err := s.Repo.FindProducts(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.Product, len(rows))
	for _, p := range rows {
		byID[p.ID] = p
	}

	items := make([]models.Product, 0, len(hits))
	for _, h := range hits {
		if p, ok := byID[h.ID]; ok && p.Active {
			items = append(items, p)
		}
	}
	return items, nil
}

// Reindex puts every active product into the search index and returns how
// many were written.
func (s *CatalogService) Reindex(ctx context.Context) (int, error) {
	if s.Index == nil {
		return 0, nil
	}

	const batch = 100
	written := 0
	for offset := 0; ; offset += batch {
		_, items, err := s.Repo.ListActiveProducts(ctx, offset, batch)
		if err != nil {
			return written, fmt.Errorf("list products: %w", err)
		}
		for i := range items {
			if err := s.Index.Put(ctx, &items[i]); err != nil {
				return written, fmt.Errorf("index product %s: %w", items[i].ID, err)
			}
			written++
		}
		if len(items) < batch {
			return written, nil
		}
	}
}

func (s *CatalogService) CreateProduct(ctx context.Context, req transport.CreateProductRequest) (*models.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("name required: %w", ErrValidation)
	}
	if req.Price.IsNegative() {
		return nil, fmt.Errorf("price cannot be negative: %w", ErrValidation)
	}

	p := &models.Product{
		Name:        name,
		Description: req.Description,
		Price:       req.Price.Round(2),
		Stock:       req.Stock,
		Active:      req.Active == nil || *req.Active,
	}
	if err := s.Repo.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	s.reindex(ctx, p)
	return p, nil
}

func (s *CatalogService) PatchProduct(ctx context.Context, id uuid.UUID, req transport.PatchProductRequest) (*models.Product, error) {
	updates := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("name cannot be empty: %w", ErrValidation)
		}
		updates["name"] = name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			return nil, fmt.Errorf("price cannot be negative: %w", ErrValidation)
		}
		updates["price"] = req.Price.Round(2)
	}
	if req.Stock != nil {
		updates["stock"] = *req.Stock
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}

	p, err := s.Repo.PatchProduct(ctx, id, updates)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	s.reindex(ctx, p)
	return p, nil
}

func (s *CatalogService) reindex(ctx context.Context, p *models.Product) {
	if s.Index == nil {
		return
	}
	if err := s.Index.Put(ctx, p); err != nil {
		logging.FromContext(ctx).Warn("search_index_put_failed", "product_id", p.ID, "error", err)
	}
}
