package dirsync

import (
	"context"

	"github.com/mikepea/dirdesk/pkg/dirdesk/graph"
	"github.com/mikepea/dirdesk/pkg/dirdesk/models"
)

// KindCounts aggregates local inventory for one entity kind.
type KindCounts struct {
	Total  int64 `json:"total"`
	Synced int64 `json:"synced"` // provenance-flagged
	Local  int64 `json:"local"`  // locally administered
}

// UserSummary is one local user in the status listing.
type UserSummary struct {
	ID               uint   `json:"id"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	FromExternalSync bool   `json:"from_external_sync"`
	AssignmentCount  int64  `json:"assignment_count"`
}

// SiteSummary is one local site in the status listing.
type SiteSummary struct {
	ID               uint   `json:"id"`
	Name             string `json:"name"`
	URL              string `json:"url"`
	FromExternalSync bool   `json:"from_external_sync"`
}

// LocalStatus is the local side of the reconciliation dashboard.
type LocalStatus struct {
	Users    KindCounts    `json:"users"`
	Sites    KindCounts    `json:"sites"`
	UserList []UserSummary `json:"user_list"`
	SiteList []SiteSummary `json:"site_list"`
}

// UpstreamStatus is the live upstream inventory, or the error that prevented
// fetching it. Never fails the status call.
type UpstreamStatus struct {
	UserCount int    `json:"user_count,omitempty"`
	SiteCount int    `json:"site_count,omitempty"`
	Error     string `json:"error,omitempty"`
}

// StatusReport drives the operator-facing reconciliation dashboard.
type StatusReport struct {
	Local    LocalStatus     `json:"local"`
	Upstream *UpstreamStatus `json:"upstream,omitempty"`
}

// Status computes the local inventory without mutating anything, optionally
// alongside a live fetch of the upstream inventory.
func (e *Engine) Status(ctx context.Context, operatorID uint, includeUpstream bool) (*StatusReport, error) {
	report := &StatusReport{}

	if err := e.localStatus(&report.Local); err != nil {
		return nil, err
	}

	if includeUpstream {
		report.Upstream = e.upstreamStatus(ctx, operatorID)
	}

	return report, nil
}

func (e *Engine) localStatus(out *LocalStatus) error {
	countKind := func(model interface{}, counts *KindCounts) error {
		if err := e.db.Model(model).Count(&counts.Total).Error; err != nil {
			return err
		}
		if err := e.db.Model(model).Where("from_external_sync = ?", true).Count(&counts.Synced).Error; err != nil {
			return err
		}
		counts.Local = counts.Total - counts.Synced
		return nil
	}

	if err := countKind(&models.User{}, &out.Users); err != nil {
		return err
	}
	if err := countKind(&models.Site{}, &out.Sites); err != nil {
		return err
	}

	var users []models.User
	if err := e.db.Order("name").Find(&users).Error; err != nil {
		return err
	}
	out.UserList = make([]UserSummary, len(users))
	for i, u := range users {
		var assignments int64
		e.db.Model(&models.DepartmentAssignment{}).Where("user_id = ?", u.ID).Count(&assignments)
		out.UserList[i] = UserSummary{
			ID:               u.ID,
			Name:             u.Name,
			Email:            u.Email,
			FromExternalSync: u.FromExternalSync,
			AssignmentCount:  assignments,
		}
	}

	var sites []models.Site
	if err := e.db.Order("name").Find(&sites).Error; err != nil {
		return err
	}
	out.SiteList = make([]SiteSummary, len(sites))
	for i, s := range sites {
		out.SiteList[i] = SiteSummary{
			ID:               s.ID,
			Name:             s.Name,
			URL:              s.URL,
			FromExternalSync: s.FromExternalSync,
		}
	}

	return nil
}

// upstreamStatus counts upstream users and sites page by page. Failures are
// reported in-band so a provider outage never breaks the dashboard.
func (e *Engine) upstreamStatus(ctx context.Context, operatorID uint) *UpstreamStatus {
	status := &UpstreamStatus{}

	opt := graph.ListOptions{PageSize: 100}
	for {
		page, err := e.client.ListUsers(ctx, operatorID, opt)
		if err != nil {
			status.Error = err.Error()
			return status
		}
		status.UserCount += len(page.Users)
		if page.NextLink == "" {
			break
		}
		opt.NextLink = page.NextLink
	}

	opt = graph.ListOptions{PageSize: 100}
	for {
		page, err := e.client.ListSites(ctx, operatorID, opt)
		if err != nil {
			status.Error = err.Error()
			return status
		}
		status.SiteCount += len(page.Sites)
		if page.NextLink == "" {
			break
		}
		opt.NextLink = page.NextLink
	}

	return status
}
