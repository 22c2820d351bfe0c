package graph

import (
	"context"
	"fmt"
	"net/http"
)

// DirectoryUser is an upstream directory user record.
type DirectoryUser struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
	JobTitle          string `json:"jobTitle"`
}

// Email returns the user's email address, falling back to the principal name
// when mail is not set.
func (u *DirectoryUser) Email() string {
	if u.Mail != "" {
		return u.Mail
	}
	return u.UserPrincipalName
}

// UserPage is one page of directory users plus the continuation link for the
// next page, empty when exhausted.
type UserPage struct {
	Users    []DirectoryUser `json:"users"`
	NextLink string          `json:"next_link,omitempty"`
}

// ListUsers lists directory users, one page per call. Resume by passing the
// returned NextLink back in opt.
func (c *Client) ListUsers(ctx context.Context, userID uint, opt ListOptions) (*UserPage, error) {
	url := opt.NextLink
	if url == "" {
		url = fmt.Sprintf("%s/users?$select=id,displayName,mail,userPrincipalName,jobTitle&$top=%d",
			c.baseURL, opt.top())
	}

	var resp struct {
		Value    []DirectoryUser `json:"value"`
		NextLink string          `json:"@odata.nextLink"`
	}
	if err := c.doJSON(ctx, userID, http.MethodGet, url, nil, &resp); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	return &UserPage{Users: resp.Value, NextLink: resp.NextLink}, nil
}

// DirectoryGroup is an upstream security or M365 group.
type DirectoryGroup struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	Mail        string `json:"mail"`
}

// GroupPage is one page of directory groups.
type GroupPage struct {
	Groups   []DirectoryGroup `json:"groups"`
	NextLink string           `json:"next_link,omitempty"`
}

// ListGroups lists directory groups, one page per call.
func (c *Client) ListGroups(ctx context.Context, userID uint, opt ListOptions) (*GroupPage, error) {
	url := opt.NextLink
	if url == "" {
		url = fmt.Sprintf("%s/groups?$select=id,displayName,description,mail&$top=%d",
			c.baseURL, opt.top())
	}

	var resp struct {
		Value    []DirectoryGroup `json:"value"`
		NextLink string           `json:"@odata.nextLink"`
	}
	if err := c.doJSON(ctx, userID, http.MethodGet, url, nil, &resp); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}

	return &GroupPage{Groups: resp.Value, NextLink: resp.NextLink}, nil
}
