package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mrops-br/storefront-api/internal/app/dto"
	"github.com/mrops-br/storefront-api/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// CatalogService handles product listing, search and detail use cases
type CatalogService struct {
	catalog         domain.Catalog
	favorites       *FavoritesStore
	tracer          trace.Tracer
	logger          *slog.Logger
	catalogRequests metric.Int64Counter
}

// NewCatalogService creates a new catalog service
func NewCatalogService(
	catalog domain.Catalog,
	favorites *FavoritesStore,
	tracer trace.Tracer,
	meter metric.Meter,
	logger *slog.Logger,
) *CatalogService {
	catalogRequests, _ := meter.Int64Counter(
		"storefront.catalog.requests",
		metric.WithDescription("Total number of catalog operations by result"),
	)

	return &CatalogService{
		catalog:         catalog,
		favorites:       favorites,
		tracer:          tracer,
		logger:          logger,
		catalogRequests: catalogRequests,
	}
}

// ListProducts lists products matching q, each flagged with its favorite status.
// A catalog failure yields an empty list.
func (s *CatalogService) ListProducts(ctx context.Context, q dto.ProductQuery) []*dto.ProductResponse {
	ctx, span := s.tracer.Start(ctx, "CatalogService.ListProducts")
	defer span.End()

	span.SetAttributes(
		attribute.String("query.category", q.Category),
		attribute.String("query.text", q.Query),
		attribute.String("query.sort", string(q.Sort)),
	)

	var (
		products []domain.Product
		err      error
	)
	if q.Category != "" {
		products, err = s.catalog.ListByCategory(ctx, q.Category)
	} else {
		products, err = s.catalog.ListAll(ctx)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Catalog unavailable")
		s.logger.ErrorContext(ctx, "Failed to list products, returning empty result",
			slog.String("category", q.Category),
			slog.String("error", err.Error()),
		)
		s.record(ctx, "list", "failure")
		return []*dto.ProductResponse{}
	}

	filtered := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if p.Matches(q.Query) {
			filtered = append(filtered, p)
		}
	}
	q.Sort.Apply(filtered)

	favorites := s.favorites.Load(ctx)

	span.SetAttributes(attribute.Int("product.count", len(filtered)))
	s.record(ctx, "list", "success")
	s.logger.InfoContext(ctx, "Products listed successfully",
		slog.Int("count", len(filtered)),
		slog.Int("catalog_count", len(products)),
	)

	span.SetStatus(codes.Ok, "Products listed successfully")
	return dto.ToProductResponseList(filtered, favorites)
}

// GetProductByID retrieves the product detail view
func (s *CatalogService) GetProductByID(ctx context.Context, id int) (*dto.ProductDetailResponse, error) {
	ctx, span := s.tracer.Start(ctx, "CatalogService.GetProductByID")
	defer span.End()

	span.SetAttributes(attribute.Int("product.id", id))

	if id <= 0 {
		span.SetStatus(codes.Error, "Invalid product id")
		return nil, domain.ErrInvalidProductID
	}

	product, err := s.catalog.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, domain.ErrProductNotFound) {
			span.SetStatus(codes.Error, "Product not found")
			s.logger.WarnContext(ctx, "Product not found", slog.Int("product_id", id))
			s.record(ctx, "read", "not_found")
			return nil, domain.ErrProductNotFound
		}
		span.SetStatus(codes.Error, "Catalog unavailable")
		s.logger.ErrorContext(ctx, "Failed to fetch product",
			slog.Int("product_id", id),
			slog.String("error", err.Error()),
		)
		s.record(ctx, "read", "failure")
		return nil, err
	}

	favorites := s.favorites.Load(ctx)

	s.record(ctx, "read", "success")
	s.logger.InfoContext(ctx, "Product retrieved successfully", slog.Int("product_id", id))

	span.SetStatus(codes.Ok, "Product retrieved successfully")
	return dto.ToProductDetailResponse(product, favorites), nil
}

// ListCategories returns the distinct categories of the whole catalog.
// A catalog failure yields an empty list.
func (s *CatalogService) ListCategories(ctx context.Context) []string {
	ctx, span := s.tracer.Start(ctx, "CatalogService.ListCategories")
	defer span.End()

	products, err := s.catalog.ListAll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Catalog unavailable")
		s.logger.ErrorContext(ctx, "Failed to list categories, returning empty result",
			slog.String("error", err.Error()),
		)
		s.record(ctx, "categories", "failure")
		return []string{}
	}

	categories := domain.Categories(products)

	span.SetAttributes(attribute.Int("category.count", len(categories)))
	s.record(ctx, "categories", "success")

	span.SetStatus(codes.Ok, "Categories listed")
	return categories
}

func (s *CatalogService) record(ctx context.Context, operation, result string) {
	s.catalogRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("result", result),
		),
	)
}
