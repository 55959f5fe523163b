package es

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/models"
)

// product converts a hit. Stock is not indexed, so it stays zero.
func (d productDoc) product() (models.Product, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return models.Product{}, fmt.Errorf("search hit id %q: %w", d.ID, err)
	}
	price, err := decimal.NewFromString(d.Price)
	if err != nil {
		return models.Product{}, fmt.Errorf("search hit price %q: %w", d.Price, err)
	}
	return models.Product{
		ID:          id,
		Name:        d.Name,
		Description: d.Description,
		Price:       price,
		Active:      d.Active,
	}, nil
}
