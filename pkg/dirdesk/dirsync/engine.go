// Package dirsync pulls directory snapshots through the graph facade and
// merges them into the local store, preserving provenance tagging and local
// edits.
package dirsync

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/mikepea/dirdesk/pkg/dirdesk/graph"
	"github.com/mikepea/dirdesk/pkg/dirdesk/models"
	"gorm.io/gorm"
)

// CatchAllDepartmentName owns externally sourced sites that have no natural
// local parent. Created once, provenance-flagged.
const CatchAllDepartmentName = "External Sites"

// RecordError describes one failed record in a reconciliation run.
type RecordError struct {
	Identifier string `json:"identifier"`
	Message    string `json:"message"`
}

// KindResult is the outcome for one entity kind.
type KindResult struct {
	SyncedCount int           `json:"synced_count"`
	Errors      []RecordError `json:"errors"`
}

// Result maps entity kind to its outcome.
type Result map[string]KindResult

// Engine merges upstream directory snapshots into the local store. One
// record's failure is recorded and does not abort the rest; a session-level
// auth failure aborts the whole run.
type Engine struct {
	db       *gorm.DB
	client   *graph.Client
	tenantID string
}

// NewEngine creates a reconciliation engine. tenantID is the configured
// directory tenant and is stamped onto every synced user; empty leaves the
// field unset.
func NewEngine(db *gorm.DB, client *graph.Client, tenantID string) *Engine {
	return &Engine{db: db, client: client, tenantID: tenantID}
}

// Run reconciles the requested entity kinds ("users", "sites") on behalf of
// the given operator. Unknown kinds are reported in the result, not fatal.
func (e *Engine) Run(ctx context.Context, operatorID uint, kinds []string) (Result, error) {
	if len(kinds) == 0 {
		kinds = []string{"users", "sites"}
	}

	result := Result{}
	for _, kind := range kinds {
		var kr KindResult
		var err error

		switch kind {
		case "users":
			kr, err = e.syncUsers(ctx, operatorID)
		case "sites":
			kr, err = e.syncSites(ctx, operatorID)
		default:
			result[kind] = KindResult{Errors: []RecordError{
				{Identifier: kind, Message: "unknown entity kind"},
			}}
			continue
		}

		if err != nil {
			// Only a session-level auth failure aborts the run
			return nil, err
		}

		log.Printf("sync: kind=%s synced=%d errors=%d", kind, kr.SyncedCount, len(kr.Errors))
		result[kind] = kr
	}

	return result, nil
}

// syncUsers pages through the upstream user snapshot and upserts each record.
func (e *Engine) syncUsers(ctx context.Context, operatorID uint) (KindResult, error) {
	result := KindResult{Errors: []RecordError{}}

	opt := graph.ListOptions{PageSize: 100}
	for {
		page, err := e.client.ListUsers(ctx, operatorID, opt)
		if err != nil {
			if errors.Is(err, graph.ErrUnauthorized) {
				return result, err
			}
			// Fetch failure for a page ends this kind but not the run
			result.Errors = append(result.Errors, RecordError{
				Identifier: "users", Message: err.Error(),
			})
			return result, nil
		}

		for i := range page.Users {
			record := &page.Users[i]
			if err := e.upsertUser(record); err != nil {
				identifier := record.DisplayName
				if identifier == "" {
					identifier = record.ID
				}
				result.Errors = append(result.Errors, RecordError{
					Identifier: identifier, Message: err.Error(),
				})
				continue
			}
			result.SyncedCount++
		}

		if page.NextLink == "" {
			break
		}
		opt.NextLink = page.NextLink
	}

	return result, nil
}

// upsertUser merges one upstream user record into the local store. Matching
// is by external directory id first, then by primary email: a record created
// locally before its external account existed is claimed by the first pass
// that sees a matching email, instead of creating a duplicate. Only
// provenance-eligible fields are merged; role and locally-entered fields are
// never touched.
func (e *Engine) upsertUser(record *graph.DirectoryUser) error {
	email := record.Email()
	if record.ID == "" || email == "" {
		return fmt.Errorf("record missing id or email")
	}

	var user models.User
	err := e.db.Where("external_id = ?", record.ID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = e.db.Where("email = ?", email).First(&user).Error
	}

	externalID := record.ID
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		name := record.DisplayName
		if name == "" {
			name = email
		}
		user = models.User{
			Email:            email,
			Name:             name,
			JobTitle:         record.JobTitle,
			SystemRole:       models.SystemRoleUser,
			FromExternalSync: true,
			ExternalID:       &externalID,
		}
		if e.tenantID != "" {
			tenantID := e.tenantID
			user.TenantID = &tenantID
		}
		return e.db.Create(&user).Error
	}

	// Merge rule: an empty upstream value never clears a stored one.
	updates := map[string]interface{}{
		"from_external_sync": true,
		"external_id":        externalID,
	}
	if record.DisplayName != "" {
		updates["name"] = record.DisplayName
	}
	if record.JobTitle != "" {
		updates["job_title"] = record.JobTitle
	}
	if e.tenantID != "" {
		updates["tenant_id"] = e.tenantID
	}

	return e.db.Model(&user).Updates(updates).Error
}

// syncSites pages through the upstream site snapshot, creating records that
// are absent. Existing sites are never updated: repeat syncs are a no-op so
// locally adjusted display names survive.
func (e *Engine) syncSites(ctx context.Context, operatorID uint) (KindResult, error) {
	result := KindResult{Errors: []RecordError{}}

	catchAll, err := e.ensureCatchAllDepartment()
	if err != nil {
		result.Errors = append(result.Errors, RecordError{
			Identifier: CatchAllDepartmentName, Message: err.Error(),
		})
		return result, nil
	}

	opt := graph.ListOptions{PageSize: 100}
	for {
		page, err := e.client.ListSites(ctx, operatorID, opt)
		if err != nil {
			if errors.Is(err, graph.ErrUnauthorized) {
				return result, err
			}
			result.Errors = append(result.Errors, RecordError{
				Identifier: "sites", Message: err.Error(),
			})
			return result, nil
		}

		for i := range page.Sites {
			record := &page.Sites[i]
			if err := e.ensureSite(record, catchAll.ID); err != nil {
				identifier := record.DisplayName
				if identifier == "" {
					identifier = record.ID
				}
				result.Errors = append(result.Errors, RecordError{
					Identifier: identifier, Message: err.Error(),
				})
				continue
			}
			result.SyncedCount++
		}

		if page.NextLink == "" {
			break
		}
		opt.NextLink = page.NextLink
	}

	return result, nil
}

// ensureCatchAllDepartment creates the catch-all department on first use.
// FirstOrCreate under the unique name index tolerates a concurrent run
// creating it at the same time.
func (e *Engine) ensureCatchAllDepartment() (*models.Department, error) {
	var dept models.Department
	err := e.db.Where(models.Department{Name: CatchAllDepartmentName}).
		Attrs(models.Department{FromExternalSync: true}).
		FirstOrCreate(&dept).Error
	if err != nil {
		// Lost the race to the unique constraint: re-read
		if reread := e.db.Where("name = ?", CatchAllDepartmentName).First(&dept).Error; reread == nil {
			return &dept, nil
		}
		return nil, err
	}
	return &dept, nil
}

// ensureSite creates a local site for the upstream record when no site with
// the same external id or URL exists.
func (e *Engine) ensureSite(record *graph.SiteRecord, departmentID uint) error {
	if record.ID == "" || record.WebURL == "" {
		return fmt.Errorf("record missing id or url")
	}

	var site models.Site
	err := e.db.Where("external_id = ? OR url = ?", record.ID, record.WebURL).First(&site).Error
	if err == nil {
		return nil // idempotent no-op on repeat sync
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	name := record.DisplayName
	if name == "" {
		name = record.WebURL
	}
	externalID := record.ID
	site = models.Site{
		Name:             name,
		URL:              record.WebURL,
		Description:      record.Description,
		FromExternalSync: true,
		ExternalID:       &externalID,
		DepartmentID:     departmentID,
	}
	return e.db.Create(&site).Error
}
