package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/glosspos/api/internal/auth"
	"github.com/glosspos/api/internal/ws"
)

const testJWTSecret = "test-secret"

func testClaims(shopID uuid.UUID) *auth.Claims {
	return &auth.Claims{
		UserID: uuid.New(),
		ShopID: shopID,
		Role:   "CASHIER",
	}
}

// mockHub records broadcast events instead of pushing them to sockets.
type mockHub struct {
	shops  []uuid.UUID
	events []ws.Event
}

func (m *mockHub) BroadcastToShop(shopID uuid.UUID, event ws.Event) {
	m.shops = append(m.shops, shopID)
	m.events = append(m.events, event)
}

func testNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	if err := n.Scan(val); err != nil {
		panic(err)
	}
	return n
}

// doAuthRequest sends a request through the router with a real JWT
// minted from the claims, so the auth middleware is exercised too.
func doAuthRequest(t *testing.T, router http.Handler, method, path string, body interface{}, claims *auth.Claims) *httptest.ResponseRecorder {
	t.Helper()

	token, err := auth.GenerateToken(testJWTSecret, claims.UserID, claims.ShopID, claims.Role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func decodeJSONList(t *testing.T, rr *httptest.ResponseRecorder) []interface{} {
	t.Helper()
	var resp []interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}
