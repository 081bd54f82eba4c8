// Package fakestore is an HTTP client for the fakestoreapi.com product catalog.
package fakestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mrops-br/storefront-api/internal/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxBodySize = 4 << 20

// Client implements domain.Catalog against the catalog REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	tracer     trace.Tracer
	logger     *slog.Logger
}

// NewClient creates a catalog client. Outgoing requests are traced by otelhttp.
func NewClient(baseURL string, timeout time.Duration, tracer trace.Tracer, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		tracer: tracer,
		logger: logger,
	}
}

// ListAll handles GET /products
func (c *Client) ListAll(ctx context.Context) ([]domain.Product, error) {
	ctx, span := c.tracer.Start(ctx, "CatalogClient.ListAll")
	defer span.End()

	return c.list(ctx, span, c.baseURL+"/products")
}

// ListByCategory handles GET /products/category/{category}
func (c *Client) ListByCategory(ctx context.Context, category string) ([]domain.Product, error) {
	ctx, span := c.tracer.Start(ctx, "CatalogClient.ListByCategory")
	defer span.End()

	span.SetAttributes(attribute.String("product.category", category))
	return c.list(ctx, span, c.baseURL+"/products/category/"+url.PathEscape(category))
}

// GetByID handles GET /products/{id}. The catalog answers an unknown id with
// an empty 200 body, which is reported as domain.ErrProductNotFound.
func (c *Client) GetByID(ctx context.Context, id int) (*domain.Product, error) {
	ctx, span := c.tracer.Start(ctx, "CatalogClient.GetByID")
	defer span.End()

	span.SetAttributes(attribute.Int("product.id", id))

	body, status, err := c.get(ctx, c.baseURL+"/products/"+strconv.Itoa(id))
	if err != nil {
		return nil, c.fail(ctx, span, err)
	}

	trimmed := bytes.TrimSpace(body)
	if status != http.StatusNotFound {
		if err := checkStatus(status, body); err != nil {
			return nil, c.fail(ctx, span, err)
		}
	}
	if status == http.StatusNotFound || len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		span.RecordError(domain.ErrProductNotFound)
		span.SetStatus(codes.Error, "Product not found")
		c.logger.WarnContext(ctx, "Product not found in catalog", slog.Int("product_id", id))
		return nil, domain.ErrProductNotFound
	}

	var product domain.Product
	if err := json.Unmarshal(trimmed, &product); err != nil {
		return nil, c.fail(ctx, span, fmt.Errorf("failed to decode product: %w", err))
	}
	if product.ID == 0 {
		span.RecordError(domain.ErrProductNotFound)
		span.SetStatus(codes.Error, "Product not found")
		return nil, domain.ErrProductNotFound
	}

	span.SetStatus(codes.Ok, "Product fetched")
	return &product, nil
}

func (c *Client) list(ctx context.Context, span trace.Span, endpoint string) ([]domain.Product, error) {
	body, status, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, c.fail(ctx, span, err)
	}
	if err := checkStatus(status, body); err != nil {
		return nil, c.fail(ctx, span, err)
	}

	var products []domain.Product
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &products); err != nil {
			return nil, c.fail(ctx, span, fmt.Errorf("failed to decode products: %w", err))
		}
	}
	if products == nil {
		products = []domain.Product{}
	}

	span.SetAttributes(attribute.Int("product.count", len(products)))
	c.logger.DebugContext(ctx, "Products fetched from catalog",
		slog.String("url", endpoint),
		slog.Int("count", len(products)),
	)

	span.SetStatus(codes.Ok, "Products fetched")
	return products, nil
}

// get performs a single GET round-trip and returns the raw body
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, resp.StatusCode, nil
}

func checkStatus(status int, body []byte) error {
	if status < 200 || status >= 300 {
		snippet := body
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return fmt.Errorf("catalog returned status %d: %s", status, string(snippet))
	}
	return nil
}

func (c *Client) fail(ctx context.Context, span trace.Span, err error) error {
	if !errors.Is(err, domain.ErrCatalogUnavailable) {
		err = fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "Catalog request failed")
	c.logger.ErrorContext(ctx, "Catalog request failed", slog.String("error", err.Error()))
	return err
}
