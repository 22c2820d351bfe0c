// Package directory enforces the cross-entity invariants both the CRUD
// handlers and the reconciliation engine must respect: one primary
// department per user, and deletion blocked for provider-sourced records or
// records with dependents.
package directory

import (
	"errors"
	"fmt"

	"github.com/mikepea/dirdesk/pkg/dirdesk/models"
	"gorm.io/gorm"
)

var (
	// ErrProvenanceLocked indicates the record is sourced from the external
	// directory and cannot be deleted locally.
	ErrProvenanceLocked = errors.New("directory: record is managed by the external directory")

	// ErrHasDependents indicates assignments, child records, or owned
	// resources still reference the record.
	ErrHasDependents = errors.New("directory: record still has dependents")

	// ErrNotFound indicates the record does not exist.
	ErrNotFound = errors.New("directory: record not found")

	// ErrUnknownKind indicates an unsupported entity kind.
	ErrUnknownKind = errors.New("directory: unknown entity kind")
)

// Kind identifies a deletable entity kind.
type Kind string

const (
	KindUser       Kind = "users"
	KindDepartment Kind = "departments"
	KindPosition   Kind = "positions"
	KindSite       Kind = "sites"
)

// SetPrimaryDepartment marks the given department as the user's primary one,
// creating the assignment when absent. Clear-then-set runs in one
// transaction so no reader observes two primaries or none mid-operation.
func SetPrimaryDepartment(db *gorm.DB, userID, departmentID uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&models.Department{}, departmentID).Error; err != nil {
			return ErrNotFound
		}
		if err := tx.First(&models.User{}, userID).Error; err != nil {
			return ErrNotFound
		}

		if err := tx.Model(&models.DepartmentAssignment{}).
			Where("user_id = ? AND department_id <> ?", userID, departmentID).
			Update("is_primary", false).Error; err != nil {
			return err
		}

		var assignment models.DepartmentAssignment
		err := tx.Where("user_id = ? AND department_id = ?", userID, departmentID).
			First(&assignment).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			assignment = models.DepartmentAssignment{
				UserID:       userID,
				DepartmentID: departmentID,
				IsPrimary:    true,
			}
			return tx.Create(&assignment).Error
		}

		return tx.Model(&assignment).Update("is_primary", true).Error
	})
}

// DeleteAssignment removes a user's assignment to a department or position.
func DeleteAssignment(db *gorm.DB, kind Kind, userID, targetID uint) error {
	switch kind {
	case KindDepartment:
		result := db.Where("user_id = ? AND department_id = ?", userID, targetID).
			Delete(&models.DepartmentAssignment{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	case KindPosition:
		result := db.Where("user_id = ? AND position_id = ?", userID, targetID).
			Delete(&models.PositionAssignment{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	default:
		return ErrUnknownKind
	}
}

// kindOps parameterizes DeleteIfAllowed per entity kind: how to read the
// provenance flag, count dependents, and perform the delete.
type kindOps struct {
	provenance func(tx *gorm.DB, id uint) (bool, error)
	dependents func(tx *gorm.DB, id uint) (int64, error)
	remove     func(tx *gorm.DB, id uint) error
}

func opsFor(kind Kind) (kindOps, error) {
	switch kind {
	case KindUser:
		return kindOps{
			provenance: func(tx *gorm.DB, id uint) (bool, error) {
				var user models.User
				if err := tx.First(&user, id).Error; err != nil {
					return false, ErrNotFound
				}
				return user.FromExternalSync, nil
			},
			dependents: func(tx *gorm.DB, id uint) (int64, error) {
				var total, count int64
				if err := tx.Model(&models.DepartmentAssignment{}).Where("user_id = ?", id).Count(&count).Error; err != nil {
					return 0, err
				}
				total += count
				if err := tx.Model(&models.PositionAssignment{}).Where("user_id = ?", id).Count(&count).Error; err != nil {
					return 0, err
				}
				total += count
				if err := tx.Model(&models.User{}).Where("manager_id = ?", id).Count(&count).Error; err != nil {
					return 0, err
				}
				total += count
				return total, nil
			},
			remove: func(tx *gorm.DB, id uint) error {
				// Credentials and sessions go with the user
				if err := tx.Where("user_id = ?", id).Delete(&models.ExternalAccount{}).Error; err != nil {
					return err
				}
				if err := tx.Where("user_id = ?", id).Delete(&models.Session{}).Error; err != nil {
					return err
				}
				return tx.Delete(&models.User{}, id).Error
			},
		}, nil
	case KindDepartment:
		return kindOps{
			provenance: func(tx *gorm.DB, id uint) (bool, error) {
				var dept models.Department
				if err := tx.First(&dept, id).Error; err != nil {
					return false, ErrNotFound
				}
				return dept.FromExternalSync, nil
			},
			dependents: func(tx *gorm.DB, id uint) (int64, error) {
				var total, count int64
				if err := tx.Model(&models.DepartmentAssignment{}).Where("department_id = ?", id).Count(&count).Error; err != nil {
					return 0, err
				}
				total += count
				if err := tx.Model(&models.Department{}).Where("parent_id = ?", id).Count(&count).Error; err != nil {
					return 0, err
				}
				total += count
				if err := tx.Model(&models.Site{}).Where("department_id = ?", id).Count(&count).Error; err != nil {
					return 0, err
				}
				total += count
				return total, nil
			},
			remove: func(tx *gorm.DB, id uint) error {
				return tx.Delete(&models.Department{}, id).Error
			},
		}, nil
	case KindPosition:
		return kindOps{
			provenance: func(tx *gorm.DB, id uint) (bool, error) {
				var position models.Position
				if err := tx.First(&position, id).Error; err != nil {
					return false, ErrNotFound
				}
				return position.FromExternalSync, nil
			},
			dependents: func(tx *gorm.DB, id uint) (int64, error) {
				var count int64
				err := tx.Model(&models.PositionAssignment{}).Where("position_id = ?", id).Count(&count).Error
				return count, err
			},
			remove: func(tx *gorm.DB, id uint) error {
				return tx.Delete(&models.Position{}, id).Error
			},
		}, nil
	case KindSite:
		return kindOps{
			provenance: func(tx *gorm.DB, id uint) (bool, error) {
				var site models.Site
				if err := tx.First(&site, id).Error; err != nil {
					return false, ErrNotFound
				}
				return site.FromExternalSync, nil
			},
			dependents: func(tx *gorm.DB, id uint) (int64, error) {
				return 0, nil
			},
			remove: func(tx *gorm.DB, id uint) error {
				return tx.Delete(&models.Site{}, id).Error
			},
		}, nil
	default:
		return kindOps{}, ErrUnknownKind
	}
}

// DeleteIfAllowed deletes a record unless it is provenance-locked or still
// has dependents. The existence check, dependent count, and delete share one
// transaction (re-check-before-write, no long-held locks).
func DeleteIfAllowed(db *gorm.DB, kind Kind, id uint) error {
	ops, err := opsFor(kind)
	if err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		locked, err := ops.provenance(tx, id)
		if err != nil {
			return err
		}
		if locked {
			return ErrProvenanceLocked
		}

		count, err := ops.dependents(tx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: %d dependent records", ErrHasDependents, count)
		}

		return ops.remove(tx, id)
	})
}

// BulkError describes one failed delete in a bulk operation.
type BulkError struct {
	ID      uint   `json:"id"`
	Message string `json:"message"`
}

// BulkResult partitions a bulk delete three ways rather than failing the
// whole batch on the first obstruction.
type BulkResult struct {
	Deleted []uint      `json:"deleted"`
	Skipped []uint      `json:"skipped"` // provenance-locked
	Errors  []BulkError `json:"errors"`
}

// BulkDeleteLocalOnly applies DeleteIfAllowed to each id. Provenance-locked
// records are reported as skipped; any other obstruction is an error entry.
func BulkDeleteLocalOnly(db *gorm.DB, kind Kind, ids []uint) BulkResult {
	result := BulkResult{Deleted: []uint{}, Skipped: []uint{}, Errors: []BulkError{}}

	for _, id := range ids {
		err := DeleteIfAllowed(db, kind, id)
		switch {
		case err == nil:
			result.Deleted = append(result.Deleted, id)
		case errors.Is(err, ErrProvenanceLocked):
			result.Skipped = append(result.Skipped, id)
		default:
			result.Errors = append(result.Errors, BulkError{ID: id, Message: err.Error()})
		}
	}

	return result
}
