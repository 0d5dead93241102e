package services

import (
	"context"

	"backoffice/internal/domain"
	"backoffice/internal/ids"
	"backoffice/internal/validate"
)

type CatalogService struct {
	Products ProductStore
	IDs      ids.Generator
}

func NewCatalogService(products ProductStore) *CatalogService {
	return &CatalogService{Products: products, IDs: ids.UUID{}}
}

// CreateProduct appends a product to the end of the display order.
func (s *CatalogService) CreateProduct(ctx context.Context, name, description string) (domain.Product, error) {
	n, d, err := productText(name, description)
	if err != nil {
		return domain.Product{}, err
	}
	return s.Products.CreateProduct(ctx, domain.Product{ID: s.IDs.NewID(), Name: n, Description: d})
}

// EditProduct replaces name, description and display order.
func (s *CatalogService) EditProduct(ctx context.Context, id, name, description string, order int) (domain.Product, error) {
	n, d, err := productText(name, description)
	if err != nil {
		return domain.Product{}, err
	}
	if order < 0 {
		return domain.Product{}, domain.Invalid("display order must not be negative")
	}
	if err := s.Products.UpdateProduct(ctx, domain.Product{ID: id, Name: n, Description: d, Order: order}); err != nil {
		return domain.Product{}, err
	}
	return s.Products.GetProduct(ctx, id)
}

func (s *CatalogService) AddVariant(ctx context.Context, productID, name string, priceCents int64) (domain.Variant, error) {
	n, err := variantFields(name, priceCents)
	if err != nil {
		return domain.Variant{}, err
	}
	v := domain.Variant{ID: s.IDs.NewID(), ProductID: productID, Name: n, PriceCents: priceCents}
	if err := s.Products.CreateVariant(ctx, v); err != nil {
		return domain.Variant{}, err
	}
	return v, nil
}

// EditVariant replaces name and price; the variant keeps its id and product.
func (s *CatalogService) EditVariant(ctx context.Context, id, name string, priceCents int64) (domain.Variant, error) {
	n, err := variantFields(name, priceCents)
	if err != nil {
		return domain.Variant{}, err
	}
	if err := s.Products.UpdateVariant(ctx, id, n, priceCents); err != nil {
		return domain.Variant{}, err
	}
	return s.Products.GetVariant(ctx, id)
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.Products.ListProducts(ctx)
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	return s.Products.GetProduct(ctx, id)
}

func productText(name, description string) (string, string, error) {
	n, ok := validate.Name(name)
	if !ok {
		return "", "", domain.Invalid("product name is required")
	}
	d, ok := validate.Text(description)
	if !ok {
		return "", "", domain.Invalid("product description is too long")
	}
	return n, d, nil
}

func variantFields(name string, priceCents int64) (string, error) {
	n, ok := validate.Name(name)
	if !ok {
		return "", domain.Invalid("variant name is required")
	}
	if priceCents < 0 {
		return "", domain.Invalid("price must not be negative")
	}
	return n, nil
}
