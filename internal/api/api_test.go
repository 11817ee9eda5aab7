package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/spajza/internal/db"
	"github.com/erazemk/spajza/internal/model"
	"github.com/erazemk/spajza/internal/store"
)

const testJWTSecret = "test-secret"

func setupTestServer(t *testing.T) (*httptest.Server, *sql.DB) {
	t.Helper()
	database := db.NewTestDB(t)
	router := NewRouter(database, testJWTSecret)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	store.CreateUser(ctx, database, "admin", string(hash), model.RoleAdmin)
	store.CreateUser(ctx, database, "alice", string(hash), model.RoleUser)
	store.CreateUser(ctx, database, "bob", string(hash), model.RoleUser)

	return server, database
}

func login(t *testing.T, server *httptest.Server, username string) string {
	t.Helper()

	body, _ := json.Marshal(map[string]string{"username": username, "password": "password"})
	resp, err := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d", resp.StatusCode)
	}

	var loginResp map[string]string
	json.NewDecoder(resp.Body).Decode(&loginResp)
	if loginResp["token"] == "" {
		t.Fatal("empty token from login")
	}
	return loginResp["token"]
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(data)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func doJSON(t *testing.T, req *http.Request, wantStatus int, target any) {
	t.Helper()

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: expected %d, got %d", req.Method, req.URL.Path, wantStatus, resp.StatusCode)
	}
	if target != nil {
		json.NewDecoder(resp.Body).Decode(target)
	}
}

func TestLoginEndpoint(t *testing.T) {
	server, _ := setupTestServer(t)

	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "wrong"})
	resp, _ := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	login(t, server, "admin")
}

func TestAuthGate(t *testing.T) {
	server, _ := setupTestServer(t)

	// No token.
	resp, _ := http.Get(server.URL + "/api/items")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Garbage token.
	req, _ := authRequest("GET", server.URL+"/api/items", "not-a-token", nil)
	resp, _ = http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for invalid token, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAdminGate(t *testing.T) {
	server, _ := setupTestServer(t)
	userToken := login(t, server, "alice")

	// Non-admin may not create items.
	req, _ := authRequest("POST", server.URL+"/api/items", userToken, map[string]any{
		"name": "Apples", "price": 150, "quantity": 5,
	})
	resp, _ := http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for non-admin item create, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// But may read the catalog.
	req, _ = authRequest("GET", server.URL+"/api/items", userToken, nil)
	doJSON(t, req, http.StatusOK, nil)
}

func TestItemsCRUD(t *testing.T) {
	server, _ := setupTestServer(t)
	adminToken := login(t, server, "admin")

	// Create.
	var item model.Item
	req, _ := authRequest("POST", server.URL+"/api/items", adminToken, map[string]any{
		"name": "Apples", "price": 150, "quantity": 5,
	})
	doJSON(t, req, http.StatusCreated, &item)
	if item.Name != "Apples" || item.Quantity != 5 {
		t.Fatalf("unexpected item: %+v", item)
	}

	// Invalid create.
	req, _ = authRequest("POST", server.URL+"/api/items", adminToken, map[string]any{
		"name": "", "price": 150, "quantity": 5,
	})
	doJSON(t, req, http.StatusBadRequest, nil)
	req, _ = authRequest("POST", server.URL+"/api/items", adminToken, map[string]any{
		"name": "Pears", "price": -1, "quantity": 5,
	})
	doJSON(t, req, http.StatusBadRequest, nil)

	// Update.
	var updated model.Item
	req, _ = authRequest("PUT", server.URL+"/api/items/1", adminToken, map[string]any{
		"name": "Green Apples", "price": 175, "quantity": 8,
	})
	doJSON(t, req, http.StatusOK, &updated)
	if updated.Name != "Green Apples" || updated.Quantity != 8 {
		t.Fatalf("unexpected updated item: %+v", updated)
	}

	// Get.
	var got model.Item
	req, _ = authRequest("GET", server.URL+"/api/items/1", adminToken, nil)
	doJSON(t, req, http.StatusOK, &got)
	if got.Price != 175 {
		t.Errorf("expected price 175, got %d", got.Price)
	}

	// Delete, then 404.
	req, _ = authRequest("DELETE", server.URL+"/api/items/1", adminToken, nil)
	doJSON(t, req, http.StatusOK, nil)
	req, _ = authRequest("GET", server.URL+"/api/items/1", adminToken, nil)
	doJSON(t, req, http.StatusNotFound, nil)
}

func TestOrderFlow(t *testing.T) {
	server, database := setupTestServer(t)
	adminToken := login(t, server, "admin")
	aliceToken := login(t, server, "alice")
	bobToken := login(t, server, "bob")

	// Admin stocks the catalog.
	var item model.Item
	req, _ := authRequest("POST", server.URL+"/api/items", adminToken, map[string]any{
		"name": "Apples", "price": 150, "quantity": 5,
	})
	doJSON(t, req, http.StatusCreated, &item)

	// Alice orders 3.
	var placed map[string]string
	req, _ = authRequest("POST", server.URL+"/api/orders", aliceToken, map[string]any{
		"items": []map[string]any{{"item_id": item.ID, "quantity": 3}},
	})
	doJSON(t, req, http.StatusCreated, &placed)
	orderID := placed["order_id"]
	if orderID == "" {
		t.Fatal("expected order_id in response")
	}

	// Stock dropped to 2.
	got, _ := store.GetItem(context.Background(), database, item.ID)
	if got.Quantity != 2 {
		t.Errorf("expected quantity 2 after order, got %d", got.Quantity)
	}

	// Overselling is rejected with 409 and stock is unchanged.
	req, _ = authRequest("POST", server.URL+"/api/orders", aliceToken, map[string]any{
		"items": []map[string]any{{"item_id": item.ID, "quantity": 9}},
	})
	doJSON(t, req, http.StatusConflict, nil)
	got, _ = store.GetItem(context.Background(), database, item.ID)
	if got.Quantity != 2 {
		t.Errorf("expected quantity 2 after rejected order, got %d", got.Quantity)
	}

	// Unknown item is 404.
	req, _ = authRequest("POST", server.URL+"/api/orders", aliceToken, map[string]any{
		"items": []map[string]any{{"item_id": 99, "quantity": 1}},
	})
	doJSON(t, req, http.StatusNotFound, nil)

	// Empty order is 400.
	req, _ = authRequest("POST", server.URL+"/api/orders", aliceToken, map[string]any{
		"items": []map[string]any{},
	})
	doJSON(t, req, http.StatusBadRequest, nil)

	// Owner sees the order.
	var lines []model.OrderLine
	req, _ = authRequest("GET", server.URL+"/api/orders/"+orderID, aliceToken, nil)
	doJSON(t, req, http.StatusOK, &lines)
	if len(lines) != 1 || lines[0].Quantity != 3 {
		t.Fatalf("unexpected order lines: %+v", lines)
	}

	// Another user gets 403, an admin 200, a missing order 404 for everyone.
	req, _ = authRequest("GET", server.URL+"/api/orders/"+orderID, bobToken, nil)
	doJSON(t, req, http.StatusForbidden, nil)
	req, _ = authRequest("GET", server.URL+"/api/orders/"+orderID, adminToken, nil)
	doJSON(t, req, http.StatusOK, nil)
	req, _ = authRequest("GET", server.URL+"/api/orders/no-such-order", bobToken, nil)
	doJSON(t, req, http.StatusNotFound, nil)
}

func TestItemListPagination(t *testing.T) {
	server, database := setupTestServer(t)
	token := login(t, server, "alice")

	ctx := context.Background()
	for i := 0; i < 12; i++ {
		store.CreateItem(ctx, database, "Item", 100, 1)
	}

	var page struct {
		Items  []model.Item `json:"items"`
		NextID int64        `json:"next_id"`
	}
	req, _ := authRequest("GET", server.URL+"/api/items", token, nil)
	doJSON(t, req, http.StatusOK, &page)
	if len(page.Items) != 10 {
		t.Fatalf("expected 10 items, got %d", len(page.Items))
	}
	if page.NextID == 0 {
		t.Fatal("expected next_id for second page")
	}

	req, _ = authRequest("GET", server.URL+"/api/items?from_id="+strconv.FormatInt(page.NextID, 10), token, nil)
	page.Items = nil
	page.NextID = 0
	doJSON(t, req, http.StatusOK, &page)
	if len(page.Items) != 2 {
		t.Errorf("expected 2 items on second page, got %d", len(page.Items))
	}
	if page.NextID != 0 {
		t.Errorf("expected no third page, got next_id %d", page.NextID)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	server, _ := setupTestServer(t)
	token := login(t, server, "alice")

	req, _ := authRequest("POST", server.URL+"/api/auth/logout", token, nil)
	doJSON(t, req, http.StatusOK, nil)

	// The same token no longer works.
	req, _ = authRequest("GET", server.URL+"/api/items", token, nil)
	doJSON(t, req, http.StatusUnauthorized, nil)
}

func TestUserManagement(t *testing.T) {
	server, _ := setupTestServer(t)
	adminToken := login(t, server, "admin")
	userToken := login(t, server, "alice")

	// Non-admin may not manage users.
	req, _ := authRequest("GET", server.URL+"/api/users", userToken, nil)
	doJSON(t, req, http.StatusForbidden, nil)

	// Admin creates a user; weak passwords and bad roles are rejected.
	req, _ = authRequest("POST", server.URL+"/api/users", adminToken, map[string]string{
		"username": "carol", "password": "strongpass", "role": "user",
	})
	doJSON(t, req, http.StatusCreated, nil)

	req, _ = authRequest("POST", server.URL+"/api/users", adminToken, map[string]string{
		"username": "dave", "password": "short", "role": "user",
	})
	doJSON(t, req, http.StatusBadRequest, nil)

	req, _ = authRequest("POST", server.URL+"/api/users", adminToken, map[string]string{
		"username": "dave", "password": "strongpass", "role": "manager",
	})
	doJSON(t, req, http.StatusBadRequest, nil)

	// The new user can log in.
	body, _ := json.Marshal(map[string]string{"username": "carol", "password": "strongpass"})
	resp, _ := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected new user login to succeed, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}
