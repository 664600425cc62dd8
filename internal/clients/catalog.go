package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/aaravmahajanofficial/ecommerce-basket/internal/api/middleware"
	"github.com/aaravmahajanofficial/ecommerce-basket/internal/config"
	"github.com/aaravmahajanofficial/ecommerce-basket/internal/metrics"
	"github.com/aaravmahajanofficial/ecommerce-basket/internal/models"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	ErrProductNotFound    = errors.New("product not found in catalog")
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)

type CatalogClient interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
}

type catalogClient struct {
	baseURL *url.URL
	http    *http.Client
	timeout time.Duration
}

func NewCatalogClient(cfg *config.Catalog) (CatalogClient, error) {
	return NewCatalogClientWithHTTP(cfg, &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)})
}

func NewCatalogClientWithHTTP(cfg *config.Catalog, httpClient *http.Client) (CatalogClient, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid catalog base url %q", cfg.BaseURL)
	}

	return &catalogClient{baseURL: u, http: httpClient, timeout: cfg.Timeout}, nil
}

// GetProductByID issues GET /products/{id}. A 404 maps to ErrProductNotFound;
// every other failure maps to ErrCatalogUnavailable. No retries are made.
func (c *catalogClient) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	u := c.baseURL.JoinPath("products", strconv.FormatInt(id, 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrCatalogUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	if cid := middleware.CorrelationIDFromContext(ctx); cid != "" {
		req.Header.Set(middleware.HeaderRequestID, cid)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.CatalogLookup("error")
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		metrics.CatalogLookup("not_found")
		return nil, fmt.Errorf("%w: id %d", ErrProductNotFound, id)
	case resp.StatusCode != http.StatusOK:
		metrics.CatalogLookup("error")
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: GET %s returned %d: %s", ErrCatalogUnavailable, u.Path, resp.StatusCode, string(body))
	}

	var product models.Product
	if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
		metrics.CatalogLookup("error")
		return nil, fmt.Errorf("%w: decode product %d: %w", ErrCatalogUnavailable, id, err)
	}

	metrics.CatalogLookup("ok")
	return &product, nil
}
