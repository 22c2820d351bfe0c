package graph

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// DriveItem is a file or folder in the signed-in user's drive.
type DriveItem struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	WebURL               string `json:"webUrl"`
	Size                 int64  `json:"size"`
	LastModifiedDateTime string `json:"lastModifiedDateTime"`
	Folder               *struct {
		ChildCount int `json:"childCount"`
	} `json:"folder,omitempty"`
	File *struct {
		MimeType string `json:"mimeType"`
	} `json:"file,omitempty"`
}

// IsFolder reports whether the item is a folder.
func (d *DriveItem) IsFolder() bool {
	return d.Folder != nil
}

// DriveItemPage is one page of drive items.
type DriveItemPage struct {
	Items    []DriveItem `json:"items"`
	NextLink string      `json:"next_link,omitempty"`
}

// ListDriveItems lists the children of a folder (root when folderID is
// empty), one page per call.
func (c *Client) ListDriveItems(ctx context.Context, userID uint, folderID string, opt ListOptions) (*DriveItemPage, error) {
	reqURL := opt.NextLink
	if reqURL == "" {
		if folderID == "" {
			reqURL = fmt.Sprintf("%s/me/drive/root/children?$top=%d", c.baseURL, opt.top())
		} else {
			reqURL = fmt.Sprintf("%s/me/drive/items/%s/children?$top=%d",
				c.baseURL, url.PathEscape(folderID), opt.top())
		}
	}

	var resp struct {
		Value    []DriveItem `json:"value"`
		NextLink string      `json:"@odata.nextLink"`
	}
	if err := c.doJSON(ctx, userID, http.MethodGet, reqURL, nil, &resp); err != nil {
		return nil, fmt.Errorf("list drive items: %w", err)
	}

	return &DriveItemPage{Items: resp.Value, NextLink: resp.NextLink}, nil
}

// CreateFolder creates a folder under the given parent (root when parentID
// is empty). Mutating operation: failures propagate.
func (c *Client) CreateFolder(ctx context.Context, userID uint, parentID, name string) (*DriveItem, error) {
	var reqURL string
	if parentID == "" {
		reqURL = fmt.Sprintf("%s/me/drive/root/children", c.baseURL)
	} else {
		reqURL = fmt.Sprintf("%s/me/drive/items/%s/children", c.baseURL, url.PathEscape(parentID))
	}

	payload := map[string]interface{}{
		"name":                              name,
		"folder":                            map[string]interface{}{},
		"@microsoft.graph.conflictBehavior": "fail",
	}

	var item DriveItem
	if err := c.doJSON(ctx, userID, http.MethodPost, reqURL, payload, &item); err != nil {
		return nil, fmt.Errorf("create folder: %w", err)
	}
	return &item, nil
}

// UploadFile uploads file content under the given parent folder. Suitable
// for small files only (single-request upload).
func (c *Client) UploadFile(ctx context.Context, userID uint, parentID, name, contentType string, content []byte) (*DriveItem, error) {
	var reqURL string
	if parentID == "" {
		reqURL = fmt.Sprintf("%s/me/drive/root:/%s:/content", c.baseURL, url.PathEscape(name))
	} else {
		reqURL = fmt.Sprintf("%s/me/drive/items/%s:/%s:/content",
			c.baseURL, url.PathEscape(parentID), url.PathEscape(name))
	}

	var item DriveItem
	if err := c.doUpload(ctx, userID, reqURL, contentType, content, &item); err != nil {
		return nil, fmt.Errorf("upload file: %w", err)
	}
	return &item, nil
}

// DeleteDriveItem deletes a file or folder.
func (c *Client) DeleteDriveItem(ctx context.Context, userID uint, itemID string) error {
	reqURL := fmt.Sprintf("%s/me/drive/items/%s", c.baseURL, url.PathEscape(itemID))
	if err := c.doJSON(ctx, userID, http.MethodDelete, reqURL, nil, nil); err != nil {
		return fmt.Errorf("delete drive item: %w", err)
	}
	return nil
}
