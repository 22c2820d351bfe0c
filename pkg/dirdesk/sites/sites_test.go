package sites

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

func createAdmin(t *testing.T, db *gorm.DB) models.User {
	user := models.User{
		Email:      "admin@example.com",
		Name:       "Admin",
		SystemRole: models.SystemRoleAdmin,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create admin: %v", err)
	}
	return user
}

func getAuthHeader(t *testing.T, db *gorm.DB, user models.User) string {
	tokenID := uuid.NewString()
	token, expiresAt, err := auth.GenerateToken(user.ID, user.Email, string(user.SystemRole), tokenID)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	if err := db.Create(&models.Session{UserID: user.ID, TokenID: tokenID, ExpiresAt: expiresAt}).Error; err != nil {
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

func TestCreateSite(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	admin := createAdmin(t, db)

	dept := models.Department{Name: "Engineering"}
	db.Create(&dept)

	resp := doJSON(router, "POST", "/sites", getAuthHeader(t, db, admin), CreateRequest{
		Name:         "Team Wiki",
		URL:          "https://example.sharepoint.com/sites/wiki",
		DepartmentID: dept.ID,
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var response SiteResponse
	json.Unmarshal(resp.Body.Bytes(), &response)
	if response.DepartmentID != dept.ID {
		t.Errorf("Expected department %d, got %d", dept.ID, response.DepartmentID)
	}
	if response.FromExternalSync {
		t.Error("Locally created site should not be marked as synced")
	}
}

func TestCreateSiteDuplicateURL(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	admin := createAdmin(t, db)
	header := getAuthHeader(t, db, admin)

	dept := models.Department{Name: "Engineering"}
	db.Create(&dept)

	req := CreateRequest{
		Name:         "Team Wiki",
		URL:          "https://example.sharepoint.com/sites/wiki",
		DepartmentID: dept.ID,
	}
	doJSON(router, "POST", "/sites", header, req)

	req.Name = "Another Wiki"
	resp := doJSON(router, "POST", "/sites", header, req)
	if resp.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", resp.Code)
	}
}

func TestCreateSiteUnknownDepartment(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	admin := createAdmin(t, db)

	resp := doJSON(router, "POST", "/sites", getAuthHeader(t, db, admin), CreateRequest{
		Name:         "Orphan",
		URL:          "https://example.sharepoint.com/sites/orphan",
		DepartmentID: 999,
	})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.Code)
	}
}

func TestListSitesByDepartment(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	admin := createAdmin(t, db)

	eng := models.Department{Name: "Engineering"}
	db.Create(&eng)
	ops := models.Department{Name: "Operations"}
	db.Create(&ops)
	db.Create(&models.Site{Name: "Eng Wiki", URL: "https://example.test/eng", DepartmentID: eng.ID})
	db.Create(&models.Site{Name: "Ops Wiki", URL: "https://example.test/ops", DepartmentID: ops.ID})

	resp := doJSON(router, "GET", fmt.Sprintf("/sites?department_id=%d", eng.ID),
		getAuthHeader(t, db, admin), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var results []SiteResponse
	json.Unmarshal(resp.Body.Bytes(), &results)
	if len(results) != 1 {
		t.Fatalf("Expected 1 site, got %d", len(results))
	}
	if results[0].Name != "Eng Wiki" {
		t.Errorf("Expected Eng Wiki, got %s", results[0].Name)
	}
}

func TestDeleteSyncedSiteConflicts(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	admin := createAdmin(t, db)

	dept := models.Department{Name: "External Sites", FromExternalSync: true}
	db.Create(&dept)
	externalID := "site-1"
	site := models.Site{
		Name:             "Synced",
		URL:              "https://example.test/synced",
		DepartmentID:     dept.ID,
		FromExternalSync: true,
		ExternalID:       &externalID,
	}
	db.Create(&site)

	resp := doJSON(router, "DELETE", fmt.Sprintf("/sites/%d", site.ID),
		getAuthHeader(t, db, admin), nil)
	if resp.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d: %s", resp.Code, resp.Body.String())
	}
}
