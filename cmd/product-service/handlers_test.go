package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeMC777/ordenes-pipeline/internal/product"
)

//
// ===== IN-MEMORY STUB REPO =====
//

type stubRepo struct {
	items   map[int64]*product.Product
	nextID  int64
	failAll error
}

func newStubRepo() *stubRepo {
	return &stubRepo{items: make(map[int64]*product.Product)}
}

func (s *stubRepo) Create(_ context.Context, p *product.Product) error {
	if s.failAll != nil {
		return s.failAll
	}
	s.nextID++
	p.ID = s.nextID
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	s.items[p.ID] = &cp
	return nil
}

func (s *stubRepo) GetByID(_ context.Context, id int64) (*product.Product, error) {
	p, ok := s.items[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *stubRepo) UpdatePrice(_ context.Context, id int64, price decimal.Decimal) error {
	p, ok := s.items[id]
	if !ok {
		return product.ErrNotFound
	}
	p.Price = price
	return nil
}

func do(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func testRouter(repo catalog) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return newRouter(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

//
// ===== TESTS =====
//

func TestCreateAndGetProduct(t *testing.T) {
	repo := newStubRepo()
	r := testRouter(repo)

	w := do(t, r, http.MethodPost, "/products", `{"name":"Mouse","description":"wireless","price":"19.90"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created product.Product
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.EqualValues(t, 1, created.ID)
	assert.True(t, decimal.RequireFromString("19.90").Equal(created.Price))

	w = do(t, r, http.MethodGet, "/products/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got product.Product
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Mouse", got.Name)

	w = do(t, r, http.MethodGet, "/products/2", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateProduct_Rejections(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{`},
		{name: "missing name", body: `{"price":"1.00"}`},
		{name: "unparsable price", body: `{"name":"x","price":"cheap"}`},
		{name: "zero price", body: `{"name":"x","price":"0"}`},
		{name: "negative price", body: `{"name":"x","price":"-3"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newStubRepo()
			w := do(t, testRouter(repo), http.MethodPost, "/products", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, repo.items)
		})
	}
}

func TestCreateProduct_StoreFailureIs500(t *testing.T) {
	repo := newStubRepo()
	repo.failAll = errors.New("connection refused")

	w := do(t, testRouter(repo), http.MethodPost, "/products", `{"name":"x","price":"1.00"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, w.Body.String())
}

func TestUpdatePrice(t *testing.T) {
	repo := newStubRepo()
	require.NoError(t, repo.Create(t.Context(), &product.Product{Name: "Keyboard", Price: decimal.RequireFromString("49.90")}))
	r := testRouter(repo)

	w := do(t, r, http.MethodPut, "/products/1/price", `{"price":"45.00"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decimal.RequireFromString("45").Equal(repo.items[1].Price))

	w = do(t, r, http.MethodPut, "/products/1/price", `{"price":"free"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPut, "/products/9/price", `{"price":"1.00"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodPut, "/products/x/price", `{"price":"1.00"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
