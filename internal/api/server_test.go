package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/farm-ledger/internal/config"
	"github.com/sells-group/farm-ledger/internal/farmerr"
	"github.com/sells-group/farm-ledger/internal/inventory"
	"github.com/sells-group/farm-ledger/internal/ledger"
	"github.com/sells-group/farm-ledger/internal/metrics"
	"github.com/sells-group/farm-ledger/internal/model"
	"github.com/sells-group/farm-ledger/internal/store"
	"github.com/sells-group/farm-ledger/internal/workflow"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	inv := inventory.NewMemory()
	require.NoError(t, inventory.DefaultCatalog().Apply(inv))
	inv.AddProduct(inventory.Product{ID: 1, Code: "7001", Name: "Tomatoes", UOM: "kg", Storable: true, StandardPrice: 2})

	cfg := &config.Config{
		Server:    config.ServerConfig{AllowedOrigins: []string{"https://farm.example"}},
		Inventory: config.InventoryConfig{ProduceCodeRegex: "^70"},
		Ledger:    config.LedgerConfig{Precision: 2, Journal: "GENERAL"},
		Orders:    config.OrdersConfig{JustificationMinLen: 10},
		Retry:     config.RetryConfig{MaxAttempts: 1},
	}
	m := metrics.New()
	svc, err := workflow.New(workflow.Deps{
		Store: store.NewMemory(), Inventory: inv, Ledger: ledger.NewMemory(2, "GENERAL"), Config: cfg, Metrics: m,
	})
	require.NoError(t, err)
	return NewServer(svc, cfg.Server, m)
}

func do(t *testing.T, s *Server, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	do(t, s, http.MethodPost, "/v1/farms", map[string]any{"name": "North"})
	rec := do(t, s, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "farm_operations_total")
}

func TestStatusOf(t *testing.T) {
	t.Parallel()
	tests := []struct {
		kind farmerr.Kind
		want int
	}{
		{farmerr.Validation, http.StatusBadRequest},
		{farmerr.NotFound, http.StatusNotFound},
		{farmerr.Precondition, http.StatusConflict},
		{farmerr.Integrity, http.StatusUnprocessableEntity},
		{farmerr.Unknown, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, statusOf(tt.kind))
		})
	}
}

func TestErrors(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/v1/projects/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/v1/projects/42", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody[errorBody](t, rec)
	assert.Equal(t, "not_found", body.Kind)
	assert.Equal(t, "project 42 not found", body.Error)

	rec = do(t, s, http.MethodDelete, "/v1/costs/1", nil, "Accept-Language", "ar")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body = decodeBody[errorBody](t, rec)
	assert.Equal(t, "integrity", body.Kind)
	assert.Equal(t, "لا يمكن حذف التكاليف، قم بإلغائها بدلاً من ذلك", body.Error)

	rec = do(t, s, http.MethodPost, "/v1/houses", map[string]any{"unit_id": 1, "name": "H", "area": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORS(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/v1/farms", nil)
	req.Header.Set("Origin", "https://farm.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, "https://farm.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCostAndHarvestFlow(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	user := []string{"X-User-ID", "grower", "X-Company-ID", "3"}

	farm := decodeBody[model.Farm](t, do(t, s, http.MethodPost, "/v1/farms", map[string]any{"name": "North"}, user...))
	assert.Equal(t, int64(3), farm.CompanyID)
	sector := decodeBody[model.Sector](t, do(t, s, http.MethodPost, "/v1/sectors", map[string]any{"farm_id": farm.ID, "name": "S1"}))
	unit := decodeBody[model.Unit](t, do(t, s, http.MethodPost, "/v1/units", map[string]any{"sector_id": sector.ID, "name": "U1"}))
	house := decodeBody[model.House](t, do(t, s, http.MethodPost, "/v1/houses", map[string]any{"unit_id": unit.ID, "name": "A", "area": 100}))

	rec := do(t, s, http.MethodPost, "/v1/projects", map[string]any{"farm_id": farm.ID, "name": "Spring"}, user...)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	project := decodeBody[model.Project](t, rec)
	base := fmt.Sprintf("/v1/projects/%d", project.ID)

	rec = do(t, s, http.MethodPost, base+"/start", nil, user...)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = do(t, s, http.MethodPost, base+"/pause", map[string]any{"reason": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, base+"/assignments", map[string]any{"house_id": house.ID, "product_id": 1, "expected_qty": 1000})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assignment := decodeBody[model.HouseAssignment](t, rec)

	rec = do(t, s, http.MethodPost, "/v1/costs", map[string]any{
		"project_id": project.ID, "type": "direct", "amount": 2000,
		"scope": map[string]any{"house_ids": []int64{house.ID}}, "payment_account": "1010", "cost_account": "6100",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cost := decodeBody[model.Cost](t, rec)

	rec = do(t, s, http.MethodPost, fmt.Sprintf("/v1/costs/%d/post", cost.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decodeBody[model.Outcome](t, rec)
	assert.Equal(t, model.EntityCost, out.Entity)

	rec = do(t, s, http.MethodPost, fmt.Sprintf("/v1/costs/%d/post", cost.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, s, http.MethodPost, "/v1/harvests", map[string]any{"assignment_id": assignment.ID, "date": "2025-05-01", "quantity": 250})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	entry := decodeBody[model.HarvestEntry](t, rec)
	assert.InDelta(t, 500, entry.AllocatedCost, 1e-9)

	rec = do(t, s, http.MethodPatch, fmt.Sprintf("/v1/harvests/%d", entry.ID), map[string]any{"quantity": 500})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	entry = decodeBody[model.HarvestEntry](t, do(t, s, http.MethodGet, fmt.Sprintf("/v1/harvests/%d", entry.ID), nil))
	assert.InDelta(t, 1000, entry.AllocatedCost, 1e-9)

	rec = do(t, s, http.MethodPost, "/v1/harvests", map[string]any{"assignment_id": assignment.ID, "date": "05/01/2025", "quantity": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	sum := decodeBody[workflow.ProjectSummary](t, do(t, s, http.MethodGet, base+"/summary", nil))
	assert.Equal(t, 1, sum.HouseCount)
	assert.InDelta(t, 2000, sum.TotalCost, 1e-9)
	assert.InDelta(t, 20, sum.CostPerSqm, 1e-9)

	history := decodeBody[[]workflow.HistoryRow](t, do(t, s, http.MethodGet, base+"/history", nil))
	require.Len(t, history, 1)
	assert.Equal(t, "grower", history[0].UserID)

	notes := decodeBody[[]model.Note](t, do(t, s, http.MethodGet, fmt.Sprintf("/v1/notes/cost/%d", cost.ID), nil))
	assert.Len(t, notes, 1)
}
