package dirsync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mikepea/dirdesk/pkg/dirdesk/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCountsLocalInventory(t *testing.T) {
	db := setupTestDB(t)

	db.Create(&models.User{Email: "local@example.com", Name: "Local", SystemRole: models.SystemRoleUser})
	db.Create(&models.User{Email: "synced@example.com", Name: "Synced", SystemRole: models.SystemRoleUser, FromExternalSync: true})

	dept := models.Department{Name: "Engineering"}
	db.Create(&dept)
	db.Create(&models.Site{Name: "Intranet", URL: "https://example.test/intranet", DepartmentID: dept.ID, FromExternalSync: true})

	engine := NewEngine(db, nil, "")
	report, err := engine.Status(context.Background(), 1, false)
	require.NoError(t, err)

	assert.EqualValues(t, 2, report.Local.Users.Total)
	assert.EqualValues(t, 1, report.Local.Users.Synced)
	assert.EqualValues(t, 1, report.Local.Users.Local)

	assert.EqualValues(t, 1, report.Local.Sites.Total)
	assert.EqualValues(t, 1, report.Local.Sites.Synced)
	assert.EqualValues(t, 0, report.Local.Sites.Local)

	require.Len(t, report.Local.UserList, 2)
	require.Len(t, report.Local.SiteList, 1)
	assert.Nil(t, report.Upstream)
}

func TestStatusIncludesUpstreamInventory(t *testing.T) {
	db := setupTestDB(t)
	provider := &fakeProvider{
		users: []map[string]string{
			{"id": "ext-1", "mail": "a@example.com"},
			{"id": "ext-2", "mail": "b@example.com"},
		},
		sites: []map[string]string{
			{"id": "site-1", "webUrl": "https://example.test/s1"},
		},
	}
	srv := provider.server()
	defer srv.Close()

	engine := newTestEngine(db, srv.URL)
	report, err := engine.Status(context.Background(), 1, true)
	require.NoError(t, err)

	require.NotNil(t, report.Upstream)
	assert.Equal(t, 2, report.Upstream.UserCount)
	assert.Equal(t, 1, report.Upstream.SiteCount)
	assert.Empty(t, report.Upstream.Error)
}

func TestStatusReportsUpstreamOutageInBand(t *testing.T) {
	db := setupTestDB(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	engine := newTestEngine(db, srv.URL)
	report, err := engine.Status(context.Background(), 1, true)
	require.NoError(t, err)

	require.NotNil(t, report.Upstream)
	assert.NotEmpty(t, report.Upstream.Error)
}
