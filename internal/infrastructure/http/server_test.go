package http

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/mrops-br/storefront-api/internal/app/dto"
	"github.com/mrops-br/storefront-api/internal/app/event"
	"github.com/mrops-br/storefront-api/internal/app/service"
	"github.com/mrops-br/storefront-api/internal/domain"
	"github.com/mrops-br/storefront-api/internal/infrastructure/catalog/fakestore"
	"github.com/mrops-br/storefront-api/internal/infrastructure/config"
	"github.com/mrops-br/storefront-api/internal/infrastructure/http/handler"
	"github.com/mrops-br/storefront-api/internal/infrastructure/http/response"
	"github.com/mrops-br/storefront-api/internal/infrastructure/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const catalogFixture = `[
	{"id":1,"title":"Backpack","price":109.95,"description":"Fits 15 inch laptops","category":"men's clothing","image":"https://fakestoreapi.com/img/1.jpg","rating":{"rate":3.9,"count":120}},
	{"id":2,"title":"Gold Bracelet","price":695,"description":"Dragon chain","category":"jewelery","image":"https://fakestoreapi.com/img/2.jpg","rating":{"rate":4.6,"count":400}},
	{"id":3,"title":"Cotton Jacket","price":55.99,"description":"Great for winter","category":"men's clothing","image":"https://fakestoreapi.com/img/3.jpg","rating":{"rate":4.7,"count":500}}
]`

type testEnv struct {
	api     *httptest.Server
	catalog *httptest.Server
	broker  *event.Broker
}

func newTestEnv(t *testing.T, catalogHandler http.HandlerFunc) *testEnv {
	t.Helper()

	if catalogHandler == nil {
		catalogHandler = fixtureCatalog
	}
	catalogSrv := httptest.NewServer(catalogHandler)
	t.Cleanup(catalogSrv.Close)

	tp := tracenoop.NewTracerProvider()
	mp := metricnoop.NewMeterProvider()
	tracer := tp.Tracer("test")
	meter := mp.Meter("test")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	catalog := fakestore.NewClient(catalogSrv.URL, 2*time.Second, tracer, logger)
	store := service.NewFavoritesStore(memory.NewKVStore(tracer, logger), "wishlist", tracer, logger)
	broker := event.NewBroker()

	catalogService := service.NewCatalogService(catalog, store, tracer, meter, logger)
	favoritesService := service.NewFavoritesService(store, catalog, broker, tracer, meter, logger)

	srv := NewServer(
		&config.ServerConfig{Host: "127.0.0.1", Port: "0", AllowedOrigins: []string{"*"}},
		handler.NewProductHandler(catalogService, logger),
		handler.NewFavoritesHandler(favoritesService, logger),
		tp, mp, logger,
	)

	api := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		broker.Close()
		api.Close()
	})

	return &testEnv{api: api, catalog: catalogSrv, broker: broker}
}

func fixtureCatalog(w http.ResponseWriter, r *http.Request) {
	var products []domain.Product
	if err := json.Unmarshal([]byte(catalogFixture), &products); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if category, ok := strings.CutPrefix(r.URL.Path, "/products/category/"); ok {
		matched := []domain.Product{}
		for _, p := range products {
			if p.Category == category {
				matched = append(matched, p)
			}
		}
		_ = json.NewEncoder(w).Encode(matched)
		return
	}

	if r.URL.Path == "/products" {
		_ = json.NewEncoder(w).Encode(products)
		return
	}

	for _, p := range products {
		if r.URL.Path == "/products/"+strconv.Itoa(p.ID) {
			_ = json.NewEncoder(w).Encode(p)
			return
		}
	}
	// Unknown ids get an empty 200, like the real catalog
	w.WriteHeader(http.StatusOK)
}

func (e *testEnv) getJSON(t *testing.T, path string, status int, out any) {
	t.Helper()
	resp, err := http.Get(e.api.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, status, resp.StatusCode, path)
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
}

func (e *testEnv) toggle(t *testing.T, id string, status int) dto.ToggleResponse {
	t.Helper()
	resp, err := http.Post(e.api.URL+"/favorites/"+id+"/toggle", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, status, resp.StatusCode)
	var out dto.ToggleResponse
	if status == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return out
}

func TestServer_ListProducts(t *testing.T) {
	env := newTestEnv(t, nil)

	var products []dto.ProductResponse
	env.getJSON(t, "/products?sort=asc", http.StatusOK, &products)
	require.Len(t, products, 3)
	assert.Equal(t, []int{3, 1, 2}, []int{products[0].ID, products[1].ID, products[2].ID})

	env.getJSON(t, "/products?query=winter", http.StatusOK, &products)
	require.Len(t, products, 1)
	assert.Equal(t, 3, products[0].ID)

	env.getJSON(t, "/products?category=jewelery", http.StatusOK, &products)
	require.Len(t, products, 1)
	assert.Equal(t, "Gold Bracelet", products[0].Title)

	var errResp response.ErrorResponse
	env.getJSON(t, "/products?sort=rating", http.StatusBadRequest, &errResp)
	assert.Equal(t, "bad_request", errResp.Error)
}

func TestServer_GetProduct(t *testing.T) {
	env := newTestEnv(t, nil)

	var product dto.ProductDetailResponse
	env.getJSON(t, "/products/1", http.StatusOK, &product)
	assert.Equal(t, "Backpack", product.Title)
	assert.Equal(t, 87.96, product.DiscountedPrice)

	var errResp response.ErrorResponse
	env.getJSON(t, "/products/999", http.StatusNotFound, &errResp)
	assert.Equal(t, "not_found", errResp.Error)

	env.getJSON(t, "/products/abc", http.StatusBadRequest, &errResp)
	env.getJSON(t, "/products/0", http.StatusBadRequest, &errResp)
}

func TestServer_CatalogDown(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	})

	var products []dto.ProductResponse
	env.getJSON(t, "/products", http.StatusOK, &products)
	assert.Empty(t, products)

	var categories []string
	env.getJSON(t, "/categories", http.StatusOK, &categories)
	assert.Empty(t, categories)

	var errResp response.ErrorResponse
	env.getJSON(t, "/products/1", http.StatusBadGateway, &errResp)
	assert.Equal(t, "bad_gateway", errResp.Error)
}

func TestServer_Categories(t *testing.T) {
	env := newTestEnv(t, nil)

	var categories []string
	env.getJSON(t, "/categories", http.StatusOK, &categories)
	assert.Equal(t, []string{"men's clothing", "jewelery"}, categories)
}

func TestServer_FavoritesFlow(t *testing.T) {
	env := newTestEnv(t, nil)

	res := env.toggle(t, "2", http.StatusOK)
	assert.Equal(t, dto.ToggleResponse{ProductID: 2, Favorited: true, Count: 1}, res)

	var favorites dto.FavoritesResponse
	env.getJSON(t, "/favorites", http.StatusOK, &favorites)
	assert.Equal(t, 1, favorites.Count)
	assert.Equal(t, []int{2}, favorites.IDs)
	require.Len(t, favorites.Products, 1)
	assert.Equal(t, 2, favorites.Products[0].ID)

	var products []dto.ProductResponse
	env.getJSON(t, "/products", http.StatusOK, &products)
	assert.True(t, products[1].Favorited)
	assert.False(t, products[0].Favorited)

	res = env.toggle(t, "2", http.StatusOK)
	assert.Equal(t, dto.ToggleResponse{ProductID: 2, Favorited: false, Count: 0}, res)

	var count dto.CountResponse
	env.getJSON(t, "/favorites/count", http.StatusOK, &count)
	assert.Equal(t, 0, count.Count)

	env.getJSON(t, "/favorites", http.StatusOK, &favorites)
	assert.Equal(t, 0, favorites.Count)
	assert.Empty(t, favorites.IDs)
	assert.Empty(t, favorites.Products)

	env.toggle(t, "x", http.StatusBadRequest)
}

func TestServer_FavoritesEvents(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, err := http.Get(env.api.URL + "/favorites/events")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	assert.Equal(t, 0, readCountEvent(t, reader))

	env.toggle(t, "3", http.StatusOK)
	assert.Equal(t, 1, readCountEvent(t, reader))

	env.toggle(t, "1", http.StatusOK)
	assert.Equal(t, 2, readCountEvent(t, reader))
}

func readCountEvent(t *testing.T, r *bufio.Reader) int {
	t.Helper()

	type result struct {
		count int
		err   error
	}
	done := make(chan result, 1)
	go func() {
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				done <- result{err: err}
				return
			}
			if data, ok := strings.CutPrefix(strings.TrimSpace(line), "data: "); ok {
				var ev dto.CountResponse
				err := json.Unmarshal([]byte(data), &ev)
				done <- result{count: ev.Count, err: err}
				return
			}
		}
	}()

	select {
	case res := <-done:
		require.NoError(t, res.err)
		return res.count
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return 0
	}
}

func TestServer_HealthAndCORS(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, err := http.Get(env.api.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "OK", string(body))

	req, err := http.NewRequest(http.MethodOptions, env.api.URL+"/favorites/1/toggle", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://shop.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
