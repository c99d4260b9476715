package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roxtor/backend/internal/backup"
	"roxtor/backend/internal/cache"
	"roxtor/backend/internal/domain"
	"roxtor/backend/internal/drafting"
	"roxtor/backend/internal/intake"
	"roxtor/backend/internal/service"
	"roxtor/backend/internal/store"
	"roxtor/backend/internal/store/memory"
	"roxtor/backend/internal/workflow"
)

const (
	staffPIN  = "482913"
	masterPIN = "905174"
)

var fixedNow = time.Date(2026, time.March, 9, 15, 0, 0, 0, time.UTC)

// newTestAPI wires the real service and auth manager over a seeded memory
// store so handler tests run the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	logger, _ := test.NewNullLogger()
	svc := service.New(memory.NewSeeded(), service.Options{
		DefaultStoreID: "store_1",
		Location:       time.UTC,
		Logger:         logger,
		Now:            func() time.Time { return fixedNow },
	})
	require.NoError(t, svc.EnsurePINs(context.Background(), staffPIN, masterPIN))

	auth := NewAuthManager("test-secret-key-with-enough-length!", time.Hour, svc)
	return New(svc, auth, "*", logger)
}

func login(t *testing.T, api *API, pin string) string {
	t.Helper()
	body, _ := json.Marshal(domain.LoginRequest{PIN: pin})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	var resp domain.LoginResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

// call sends an authenticated request, attaching a CSRF token to mutations.
func call(t *testing.T, api *API, method string, path string, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if method != http.MethodGet {
		req.Header.Set("X-CSRF-Token", fetchCSRFToken(t, api))
	}
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	return res
}

func decodeOrder(t *testing.T, res *httptest.ResponseRecorder) domain.Order {
	t.Helper()
	var body struct {
		Order domain.Order `json:"order"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	return body.Order
}

func newOrderRequest() domain.ServiceOrderRequest {
	return domain.ServiceOrderRequest{
		StoreID:         "store_1",
		CustomerName:    "maria perez",
		CustomerID:      "V-12345678",
		CustomerPhone:   "4141234567",
		DeliveryDate:    "16/03/2026",
		AssignedAgentID: "a1",
		InitialStatus:   domain.StatusDesign,
		Items:           []domain.OrderItemInput{{ProductID: "p1", Quantity: 12}},
	}
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, true, body["ok"])
}

func TestLoginGrantsRoleByPIN(t *testing.T) {
	api := newTestAPI(t)

	staff, err := api.auth.ParseToken(login(t, api, staffPIN))
	require.NoError(t, err)
	assert.Equal(t, domain.RoleStaff, staff.Role)

	admin, err := api.auth.ParseToken(login(t, api, masterPIN))
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)
}

func TestLoginRejectsUnknownPIN(t *testing.T) {
	api := newTestAPI(t)
	res := call(t, api, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{PIN: "000001"})
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestProductsRequireAuth(t *testing.T) {
	api := newTestAPI(t)
	res := call(t, api, http.MethodGet, "/api/v1/products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestProductsListedPerStore(t *testing.T) {
	api := newTestAPI(t)
	res := call(t, api, http.MethodGet, "/api/v1/products?store_id=store_1", login(t, api, staffPIN), nil)
	require.Equal(t, http.StatusOK, res.Code)

	var body struct {
		Products []domain.Product `json:"products"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.NotEmpty(t, body.Products)
}

func TestProductWritesNeedAdmin(t *testing.T) {
	api := newTestAPI(t)
	req := domain.ProductRequest{Name: "chemise piqué", PriceRetail: decimal.NewFromInt(15), Stock: 4}

	res := call(t, api, http.MethodPost, "/api/v1/products", login(t, api, staffPIN), req)
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = call(t, api, http.MethodPost, "/api/v1/products", login(t, api, masterPIN), req)
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var body struct {
		Product domain.Product `json:"product"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "CHEMISE PIQUÉ", body.Product.Name)

	res = call(t, api, http.MethodPatch, "/api/v1/products/p404", login(t, api, masterPIN), req)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestServiceOrderLifecycle(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, staffPIN)

	res := call(t, api, http.MethodPost, "/api/v1/orders", token, newOrderRequest())
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	order := decodeOrder(t, res)
	assert.Equal(t, "P-0001", order.OrderNumber)
	base := "/api/v1/orders/" + order.ID

	res = call(t, api, http.MethodPost, base+"/receive", token, nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Equal(t, domain.TaskInProgress, decodeOrder(t, res).TaskStatus)

	res = call(t, api, http.MethodPost, base+"/complete", token, nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Equal(t, domain.TaskDone, decodeOrder(t, res).TaskStatus)

	payment := domain.PaymentRequest{AmountUSD: decimal.NewFromInt(10), Method: domain.PaymentMobile, Reference: "0412"}
	res = call(t, api, http.MethodPost, base+"/payments", token, payment)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	paid := decodeOrder(t, res)
	assert.True(t, paid.AbonoUSD.Equal(decimal.NewFromInt(10)))
	assert.True(t, paid.RestanteUSD.Equal(decimal.NewFromInt(56)))

	res = call(t, api, http.MethodPost, base+"/finish", token, nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Equal(t, domain.StatusCompleted, decodeOrder(t, res).Status)

	res = call(t, api, http.MethodGet, "/api/v1/deliveries/pending", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), order.ID)

	res = call(t, api, http.MethodPost, base+"/deliver", token, nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	res = call(t, api, http.MethodGet, base, token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	final := decodeOrder(t, res)
	assert.True(t, final.IsDelivered)
	assert.Len(t, final.History, 6)
}

func TestRejectedTransitionReturnsConflict(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, staffPIN)
	order := decodeOrder(t, call(t, api, http.MethodPost, "/api/v1/orders", token, newOrderRequest()))

	res := call(t, api, http.MethodPost, "/api/v1/orders/"+order.ID+"/complete", token, nil)
	require.Equal(t, http.StatusConflict, res.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, string(workflow.KindCompleteTask), body["action"])

	res = call(t, api, http.MethodPost, "/api/v1/orders/"+order.ID+"/teleport", token, nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestInvalidOrderListsFields(t *testing.T) {
	api := newTestAPI(t)
	res := call(t, api, http.MethodPost, "/api/v1/orders", login(t, api, staffPIN), domain.ServiceOrderRequest{})
	require.Equal(t, http.StatusBadRequest, res.Code)

	var body struct {
		Fields []string `json:"fields"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.NotEmpty(t, body.Fields)
}

func TestUnknownFieldsAreRejected(t *testing.T) {
	api := newTestAPI(t)
	res := call(t, api, http.MethodPost, "/api/v1/agents", login(t, api, staffPIN), map[string]any{"name": "LUIS", "nickname": "lu"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestUnknownOrderReturnsNotFound(t *testing.T) {
	api := newTestAPI(t)
	res := call(t, api, http.MethodGet, "/api/v1/orders/missing", login(t, api, staffPIN), nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestOrdersByDateRange(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, staffPIN)
	call(t, api, http.MethodPost, "/api/v1/orders", token, newOrderRequest())

	res := call(t, api, http.MethodGet, "/api/v1/orders?from=2026-03-09&to=2026-03-09", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "P-0001")

	res = call(t, api, http.MethodGet, "/api/v1/orders?from=01/03/2026&to=02/03/2026", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.NotContains(t, res.Body.String(), "P-0001")

	res = call(t, api, http.MethodGet, "/api/v1/orders?from=yesterday", token, nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestBoardGroupsByStage(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, staffPIN)
	call(t, api, http.MethodPost, "/api/v1/orders", token, newOrderRequest())

	res := call(t, api, http.MethodGet, "/api/v1/board?store_id=store_1", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var body struct {
		Columns []domain.BoardColumn `json:"columns"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	require.Len(t, body.Columns, len(domain.Stages))
	for _, column := range body.Columns {
		if column.Stage == domain.StatusDesign {
			assert.Len(t, column.Cards, 1)
		}
	}
}

func TestCashClosingFormats(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, staffPIN)
	req := newOrderRequest()
	req.AbonoUSD = decimal.NewFromInt(20)
	req.PaymentMethod = domain.PaymentCashUSD
	require.Equal(t, http.StatusCreated, call(t, api, http.MethodPost, "/api/v1/orders", token, req).Code)

	res := call(t, api, http.MethodGet, "/api/v1/cash-closing?date=2026-03-09&store_id=store_1", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"store_id":"store_1"`)

	res = call(t, api, http.MethodGet, "/api/v1/cash-closing?date=09/03/2026&store_id=store_1&format=text", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "CIERRE DE CAJA")

	res = call(t, api, http.MethodGet, "/api/v1/cash-closing?date=2026-03-09&format=xlsx", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Header().Get("Content-Type"), "spreadsheetml")
	assert.NotZero(t, res.Body.Len())

	res = call(t, api, http.MethodGet, "/api/v1/cash-closing?format=pdf", token, nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestDraftWithoutModelIsUnavailable(t *testing.T) {
	api := newTestAPI(t)
	res := call(t, api, http.MethodPost, "/api/v1/radar/draft", login(t, api, staffPIN), domain.DraftTextRequest{Text: "quiero 3 gorras"})
	assert.Equal(t, http.StatusBadGateway, res.Code)
}

func TestBackupRoundTrip(t *testing.T) {
	api := newTestAPI(t)
	admin := login(t, api, masterPIN)

	assert.Equal(t, http.StatusForbidden, call(t, api, http.MethodGet, "/api/v1/backup/export", login(t, api, staffPIN), nil).Code)

	res := call(t, api, http.MethodGet, "/api/v1/backup/export", admin, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var doc backup.Document
	require.NoError(t, json.NewDecoder(res.Body).Decode(&doc))
	assert.Equal(t, backup.Version, doc.Version)

	res = call(t, api, http.MethodPost, "/api/v1/backup/import", admin, doc)
	assert.Equal(t, http.StatusPreconditionRequired, res.Code)

	res = call(t, api, http.MethodPost, "/api/v1/backup/import?confirm=true", admin, doc)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	doc.KeyCheck = "OTHER-NODE"
	res = call(t, api, http.MethodPost, "/api/v1/backup/import?confirm=true", admin, doc)
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestSettingsPatchNeedsAdminAndHidesSecrets(t *testing.T) {
	api := newTestAPI(t)
	rate := decimal.NewFromInt(40)
	patch := domain.SettingsUpdateRequest{BCVRate: &rate}

	assert.Equal(t, http.StatusForbidden, call(t, api, http.MethodPatch, "/api/v1/settings", login(t, api, staffPIN), patch).Code)

	res := call(t, api, http.MethodPatch, "/api/v1/settings", login(t, api, masterPIN), patch)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var body struct {
		Settings domain.Settings `json:"settings"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.True(t, body.Settings.BCVRate.Equal(rate))
	assert.Empty(t, body.Settings.MasterPINHash)
	assert.Empty(t, body.Settings.LoginPINHash)
}

func TestSyncStatusDefaultsOffline(t *testing.T) {
	api := newTestAPI(t)
	res := call(t, api, http.MethodGet, "/api/v1/sync/status", login(t, api, staffPIN), nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"status":"offline"`)
}

func TestStatusForMapsDomainErrors(t *testing.T) {
	cases := map[int][]error{
		http.StatusBadRequest:           {&intake.ValidationError{Fields: []string{"Teléfono"}}, store.ErrInvalidOrder, backup.ErrInvalidDocument},
		http.StatusNotFound:             {store.ErrNotFound, fmt.Errorf("get order: %w", store.ErrNotFound)},
		http.StatusConflict:             {&workflow.TransitionError{Err: workflow.ErrNotPermitted}, store.ErrConflict, cache.ErrLocked},
		http.StatusForbidden:            {service.ErrForbidden, backup.ErrKeyMismatch},
		http.StatusPreconditionRequired: {backup.ErrConfirmationRequired},
		http.StatusBadGateway:           {fmt.Errorf("%w: timeout", drafting.ErrUnavailable)},
		http.StatusInternalServerError:  {errors.New("disk on fire")},
	}
	for status, errs := range cases {
		for _, err := range errs {
			assert.Equal(t, status, statusFor(err), err.Error())
		}
	}
}
