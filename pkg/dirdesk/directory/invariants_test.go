package directory

import (
	"testing"
	"time"

	"github.com/mikepea/dirdesk/pkg/dirdesk/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	return db
}

func createUser(t *testing.T, db *gorm.DB, email string, synced bool) *models.User {
	user := models.User{
		Email:            email,
		Name:             "Test User",
		SystemRole:       models.SystemRoleUser,
		FromExternalSync: synced,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func createDepartment(t *testing.T, db *gorm.DB, name string, synced bool) *models.Department {
	dept := models.Department{Name: name, FromExternalSync: synced}
	require.NoError(t, db.Create(&dept).Error)
	return &dept
}

func countPrimaries(t *testing.T, db *gorm.DB, userID uint) int64 {
	var count int64
	require.NoError(t, db.Model(&models.DepartmentAssignment{}).
		Where("user_id = ? AND is_primary = ?", userID, true).Count(&count).Error)
	return count
}

func TestSetPrimaryDepartmentCreatesAssignment(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "alice@example.com", false)
	dept := createDepartment(t, db, "Engineering", false)

	require.NoError(t, SetPrimaryDepartment(db, user.ID, dept.ID))

	var assignment models.DepartmentAssignment
	require.NoError(t, db.Where("user_id = ? AND department_id = ?", user.ID, dept.ID).
		First(&assignment).Error)
	assert.True(t, assignment.IsPrimary)
	assert.EqualValues(t, 1, countPrimaries(t, db, user.ID))
}

func TestSetPrimaryDepartmentMovesPrimary(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "alice@example.com", false)
	eng := createDepartment(t, db, "Engineering", false)
	ops := createDepartment(t, db, "Operations", false)

	require.NoError(t, SetPrimaryDepartment(db, user.ID, eng.ID))
	require.NoError(t, SetPrimaryDepartment(db, user.ID, ops.ID))

	// Exactly one primary, and it is the most recent one
	assert.EqualValues(t, 1, countPrimaries(t, db, user.ID))

	var primary models.DepartmentAssignment
	require.NoError(t, db.Where("user_id = ? AND is_primary = ?", user.ID, true).
		First(&primary).Error)
	assert.Equal(t, ops.ID, primary.DepartmentID)

	// The old assignment survives as non-primary membership
	var old models.DepartmentAssignment
	require.NoError(t, db.Where("user_id = ? AND department_id = ?", user.ID, eng.ID).
		First(&old).Error)
	assert.False(t, old.IsPrimary)
}

func TestSetPrimaryDepartmentIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "alice@example.com", false)
	dept := createDepartment(t, db, "Engineering", false)

	require.NoError(t, SetPrimaryDepartment(db, user.ID, dept.ID))
	require.NoError(t, SetPrimaryDepartment(db, user.ID, dept.ID))

	var count int64
	db.Model(&models.DepartmentAssignment{}).Where("user_id = ?", user.ID).Count(&count)
	assert.EqualValues(t, 1, count)
	assert.EqualValues(t, 1, countPrimaries(t, db, user.ID))
}

func TestSetPrimaryDepartmentMissingTargets(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "alice@example.com", false)
	dept := createDepartment(t, db, "Engineering", false)

	assert.ErrorIs(t, SetPrimaryDepartment(db, user.ID, 999), ErrNotFound)
	assert.ErrorIs(t, SetPrimaryDepartment(db, 999, dept.ID), ErrNotFound)

	// Nothing was written on either failure
	var count int64
	db.Model(&models.DepartmentAssignment{}).Count(&count)
	assert.EqualValues(t, 0, count)
}

func TestDeleteAssignment(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "alice@example.com", false)
	dept := createDepartment(t, db, "Engineering", false)
	require.NoError(t, SetPrimaryDepartment(db, user.ID, dept.ID))

	require.NoError(t, DeleteAssignment(db, KindDepartment, user.ID, dept.ID))
	assert.ErrorIs(t, DeleteAssignment(db, KindDepartment, user.ID, dept.ID), ErrNotFound)
	assert.ErrorIs(t, DeleteAssignment(db, KindUser, user.ID, dept.ID), ErrUnknownKind)
}

func TestDeleteIfAllowedProvenanceLocked(t *testing.T) {
	db := setupTestDB(t)
	synced := createUser(t, db, "synced@example.com", true)

	err := DeleteIfAllowed(db, KindUser, synced.ID)
	assert.ErrorIs(t, err, ErrProvenanceLocked)

	// The record is untouched
	var user models.User
	assert.NoError(t, db.First(&user, synced.ID).Error)
}

func TestDeleteIfAllowedBlocksOnDependents(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "alice@example.com", false)
	dept := createDepartment(t, db, "Engineering", false)
	require.NoError(t, SetPrimaryDepartment(db, user.ID, dept.ID))

	assert.ErrorIs(t, DeleteIfAllowed(db, KindUser, user.ID), ErrHasDependents)
	assert.ErrorIs(t, DeleteIfAllowed(db, KindDepartment, dept.ID), ErrHasDependents)

	// Removing the assignment unblocks both
	require.NoError(t, DeleteAssignment(db, KindDepartment, user.ID, dept.ID))
	assert.NoError(t, DeleteIfAllowed(db, KindUser, user.ID))
	assert.NoError(t, DeleteIfAllowed(db, KindDepartment, dept.ID))
}

func TestDeleteIfAllowedBlocksManagerWithReports(t *testing.T) {
	db := setupTestDB(t)
	manager := createUser(t, db, "manager@example.com", false)

	report := models.User{
		Email:      "report@example.com",
		Name:       "Report",
		SystemRole: models.SystemRoleUser,
		ManagerID:  &manager.ID,
	}
	require.NoError(t, db.Create(&report).Error)

	assert.ErrorIs(t, DeleteIfAllowed(db, KindUser, manager.ID), ErrHasDependents)
}

func TestDeleteIfAllowedBlocksDepartmentWithChildren(t *testing.T) {
	db := setupTestDB(t)
	parent := createDepartment(t, db, "Engineering", false)

	child := models.Department{Name: "Platform", ParentID: &parent.ID}
	require.NoError(t, db.Create(&child).Error)

	assert.ErrorIs(t, DeleteIfAllowed(db, KindDepartment, parent.ID), ErrHasDependents)
	assert.NoError(t, DeleteIfAllowed(db, KindDepartment, child.ID))
	assert.NoError(t, DeleteIfAllowed(db, KindDepartment, parent.ID))
}

func TestDeleteUserRemovesCredentialsAndSessions(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "alice@example.com", false)

	require.NoError(t, db.Create(&models.ExternalAccount{
		UserID:    user.ID,
		Provider:  models.ProviderMicrosoft,
		ExpiresAt: time.Now().Add(time.Hour),
	}).Error)
	require.NoError(t, db.Create(&models.Session{
		UserID:    user.ID,
		TokenID:   "jti-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}).Error)

	require.NoError(t, DeleteIfAllowed(db, KindUser, user.ID))

	var accounts, sessions int64
	db.Model(&models.ExternalAccount{}).Where("user_id = ?", user.ID).Count(&accounts)
	db.Model(&models.Session{}).Where("user_id = ?", user.ID).Count(&sessions)
	assert.EqualValues(t, 0, accounts)
	assert.EqualValues(t, 0, sessions)
}

func TestDeleteIfAllowedNotFoundAndUnknownKind(t *testing.T) {
	db := setupTestDB(t)

	assert.ErrorIs(t, DeleteIfAllowed(db, KindUser, 999), ErrNotFound)
	assert.ErrorIs(t, DeleteIfAllowed(db, Kind("widgets"), 1), ErrUnknownKind)
}

func TestBulkDeleteLocalOnlyPartitionsResults(t *testing.T) {
	db := setupTestDB(t)

	deletable := createUser(t, db, "local@example.com", false)
	locked := createUser(t, db, "synced@example.com", true)

	blocked := createUser(t, db, "blocked@example.com", false)
	dept := createDepartment(t, db, "Engineering", false)
	require.NoError(t, SetPrimaryDepartment(db, blocked.ID, dept.ID))

	result := BulkDeleteLocalOnly(db, KindUser, []uint{deletable.ID, locked.ID, blocked.ID, 999})

	assert.Equal(t, []uint{deletable.ID}, result.Deleted)
	assert.Equal(t, []uint{locked.ID}, result.Skipped)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, blocked.ID, result.Errors[0].ID)
	assert.EqualValues(t, 999, result.Errors[1].ID)

	// Locked and blocked records survive
	var count int64
	db.Model(&models.User{}).Count(&count)
	assert.EqualValues(t, 2, count)
}
