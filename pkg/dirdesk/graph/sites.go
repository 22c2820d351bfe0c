package graph

import (
	"context"
	"fmt"
	"net/http"
)

// Data source tags for degradable reads. A response marked SourceFallback
// was served from the static fallback payload because the upstream call
// failed; the UI must present it as non-live.
const (
	SourceLive     = "live"
	SourceFallback = "fallback"
)

// SiteRecord is an upstream collaboration site.
type SiteRecord struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	WebURL      string `json:"webUrl"`
	Description string `json:"description"`
}

// SitePage is one page of collaboration sites.
type SitePage struct {
	Sites    []SiteRecord `json:"sites"`
	NextLink string       `json:"next_link,omitempty"`
}

// SiteListResult tags a site listing with its data source.
type SiteListResult struct {
	Source string   `json:"source"`
	Page   SitePage `json:"page"`
}

// ListSites lists collaboration sites, one page per call. Auth failures
// propagate; see ListSitesOrFallback for the degradable variant used by
// operator dashboards.
func (c *Client) ListSites(ctx context.Context, userID uint, opt ListOptions) (*SitePage, error) {
	url := opt.NextLink
	if url == "" {
		url = fmt.Sprintf("%s/sites?search=*&$top=%d", c.baseURL, opt.top())
	}

	var resp struct {
		Value    []SiteRecord `json:"value"`
		NextLink string       `json:"@odata.nextLink"`
	}
	if err := c.doJSON(ctx, userID, http.MethodGet, url, nil, &resp); err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}

	return &SitePage{Sites: resp.Value, NextLink: resp.NextLink}, nil
}

// ListSitesOrFallback lists sites, degrading to the static fallback payload
// when the upstream is unreachable. Auth failures still propagate so the
// caller can prompt for re-connection.
func (c *Client) ListSitesOrFallback(ctx context.Context, userID uint, opt ListOptions) (*SiteListResult, error) {
	page, err := c.ListSites(ctx, userID, opt)
	if err != nil {
		if IsDegradable(err) {
			return &SiteListResult{Source: SourceFallback, Page: SitePage{Sites: fallbackSites}}, nil
		}
		return nil, err
	}
	return &SiteListResult{Source: SourceLive, Page: *page}, nil
}

// fallbackSites is served when the provider is unreachable. Kept
// deliberately small and clearly labeled; consumers must check Source.
var fallbackSites = []SiteRecord{
	{ID: "fallback-intranet", DisplayName: "Intranet", WebURL: "https://example.sharepoint.com/sites/intranet"},
	{ID: "fallback-handbook", DisplayName: "Employee Handbook", WebURL: "https://example.sharepoint.com/sites/handbook"},
}
