package users

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mikepea/dirdesk/pkg/dirdesk/auth"
	"github.com/mikepea/dirdesk/pkg/dirdesk/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	models.AutoMigrate(db)
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, email string, role models.SystemRole) models.User {
	hash, _ := auth.HashPassword("password123")
	user := models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         "Test User",
		SystemRole:   role,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHandler(db)

	api := r.Group("", auth.AuthMiddleware(db))
	handler.RegisterRoutes(api)

	admin := r.Group("", auth.AuthMiddleware(db), auth.RequireAdmin())
	handler.RegisterAdminRoutes(admin)

	return r
}

func getAuthHeader(t *testing.T, db *gorm.DB, user models.User) string {
	tokenID := uuid.NewString()
	token, expiresAt, err := auth.GenerateToken(user.ID, user.Email, string(user.SystemRole), tokenID)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	session := models.Session{UserID: user.ID, TokenID: tokenID, ExpiresAt: expiresAt}
	if err := db.Create(&session).Error; err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	return "Bearer " + token
}

func doJSON(router *gin.Engine, method, path, authHeader string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", authHeader)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestListUsersWithSearch(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	admin := createTestUser(t, db, "admin@example.com", models.SystemRoleAdmin)

	alice := models.User{Email: "alice@example.com", Name: "Alice Smith", SystemRole: models.SystemRoleUser}
	db.Create(&alice)
	bob := models.User{Email: "bob@example.com", Name: "Bob Jones", SystemRole: models.SystemRoleUser}
	db.Create(&bob)

	resp := doJSON(router, "GET", "/users?search=alice", getAuthHeader(t, db, admin), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var results []UserResponse
	json.Unmarshal(resp.Body.Bytes(), &results)
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if results[0].Email != "alice@example.com" {
		t.Errorf("Expected alice@example.com, got %s", results[0].Email)
	}
}

func TestCreateUser(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	admin := createTestUser(t, db, "admin@example.com", models.SystemRoleAdmin)

	resp := doJSON(router, "POST", "/users", getAuthHeader(t, db, admin), CreateRequest{
		Email:    "new@example.com",
		Name:     "New User",
		Password: "password123",
		JobTitle: "Engineer",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var response UserResponse
	json.Unmarshal(resp.Body.Bytes(), &response)
	if response.SystemRole != "user" {
		t.Errorf("Expected default role user, got %s", response.SystemRole)
	}
	if response.FromExternalSync {
		t.Error("Locally created user should not be marked as synced")
	}
}

func TestCreateUserWithoutPassword(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	admin := createTestUser(t, db, "admin@example.com", models.SystemRoleAdmin)

	// Directory-style records can exist without login credentials
	resp := doJSON(router, "POST", "/users", getAuthHeader(t, db, admin), CreateRequest{
		Email: "nologin@example.com",
		Name:  "No Login",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var user models.User
	db.Where("email = ?", "nologin@example.com").First(&user)
	if user.PasswordHash != "" {
		t.Error("Expected empty password hash")
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	admin := createTestUser(t, db, "admin@example.com", models.SystemRoleAdmin)

	resp := doJSON(router, "POST", "/users", getAuthHeader(t, db, admin), CreateRequest{
		Email: "admin@example.com",
		Name:  "Duplicate",
	})
	if resp.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", resp.Code)
	}
}

func TestCreateUserRequiresAdmin(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "user@example.com", models.SystemRoleUser)

	resp := doJSON(router, "POST", "/users", getAuthHeader(t, db, user), CreateRequest{
		Email: "new@example.com",
		Name:  "New User",
	})
	if resp.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", resp.Code)
	}
}

func TestUpdateUserRole(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	admin := createTestUser(t, db, "admin@example.com", models.SystemRoleAdmin)
	target := createTestUser(t, db, "target@example.com", models.SystemRoleUser)

	role := "admin"
	resp := doJSON(router, "PUT", fmt.Sprintf("/users/%d", target.ID),
		getAuthHeader(t, db, admin), UpdateRequest{Role: &role})
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var updated models.User
	db.First(&updated, target.ID)
	if updated.SystemRole != models.SystemRoleAdmin {
		t.Errorf("Expected role admin, got %s", updated.SystemRole)
	}
}

func TestDeleteSyncedUserConflicts(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	admin := createTestUser(t, db, "admin@example.com", models.SystemRoleAdmin)

	externalID := "ext-1"
	synced := models.User{
		Email:            "synced@example.com",
		Name:             "Synced",
		SystemRole:       models.SystemRoleUser,
		FromExternalSync: true,
		ExternalID:       &externalID,
	}
	db.Create(&synced)

	resp := doJSON(router, "DELETE", fmt.Sprintf("/users/%d", synced.ID),
		getAuthHeader(t, db, admin), nil)
	if resp.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestDeleteUser(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	admin := createTestUser(t, db, "admin@example.com", models.SystemRoleAdmin)
	target := createTestUser(t, db, "target@example.com", models.SystemRoleUser)

	resp := doJSON(router, "DELETE", fmt.Sprintf("/users/%d", target.ID),
		getAuthHeader(t, db, admin), nil)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d: %s", resp.Code, resp.Body.String())
	}

	var count int64
	db.Model(&models.User{}).Where("id = ?", target.ID).Count(&count)
	if count != 0 {
		t.Error("Expected user to be deleted")
	}
}

func TestBulkDeleteSkipsSyncedUsers(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	admin := createTestUser(t, db, "admin@example.com", models.SystemRoleAdmin)

	local := createTestUser(t, db, "local@example.com", models.SystemRoleUser)
	synced := models.User{
		Email:            "synced@example.com",
		Name:             "Synced",
		SystemRole:       models.SystemRoleUser,
		FromExternalSync: true,
	}
	db.Create(&synced)

	resp := doJSON(router, "POST", "/users/bulk-delete", getAuthHeader(t, db, admin),
		BulkDeleteRequest{IDs: []uint{local.ID, synced.ID}})
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var result struct {
		Deleted []uint `json:"deleted"`
		Skipped []uint `json:"skipped"`
	}
	json.Unmarshal(resp.Body.Bytes(), &result)
	if len(result.Deleted) != 1 || result.Deleted[0] != local.ID {
		t.Errorf("Expected deleted=[%d], got %v", local.ID, result.Deleted)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != synced.ID {
		t.Errorf("Expected skipped=[%d], got %v", synced.ID, result.Skipped)
	}
}
