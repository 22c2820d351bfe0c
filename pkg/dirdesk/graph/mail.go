package graph

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// MailFolder is an upstream mailbox folder.
type MailFolder struct {
	ID               string `json:"id"`
	DisplayName      string `json:"displayName"`
	TotalItemCount   int    `json:"totalItemCount"`
	UnreadItemCount  int    `json:"unreadItemCount"`
	ChildFolderCount int    `json:"childFolderCount"`
}

// Message is an upstream mail message header.
type Message struct {
	ID               string `json:"id"`
	Subject          string `json:"subject"`
	BodyPreview      string `json:"bodyPreview"`
	ReceivedDateTime string `json:"receivedDateTime"`
	IsRead           bool   `json:"isRead"`
	From             struct {
		EmailAddress struct {
			Name    string `json:"name"`
			Address string `json:"address"`
		} `json:"emailAddress"`
	} `json:"from"`
}

// MessagePage is one page of messages.
type MessagePage struct {
	Messages []Message `json:"messages"`
	NextLink string    `json:"next_link,omitempty"`
}

// ListMailFolders lists the signed-in user's mail folders.
func (c *Client) ListMailFolders(ctx context.Context, userID uint) ([]MailFolder, error) {
	reqURL := fmt.Sprintf("%s/me/mailFolders", c.baseURL)

	var resp struct {
		Value []MailFolder `json:"value"`
	}
	if err := c.doJSON(ctx, userID, http.MethodGet, reqURL, nil, &resp); err != nil {
		return nil, fmt.Errorf("list mail folders: %w", err)
	}
	return resp.Value, nil
}

// ListMessages lists messages in a folder, one page per call.
func (c *Client) ListMessages(ctx context.Context, userID uint, folderID string, opt ListOptions) (*MessagePage, error) {
	reqURL := opt.NextLink
	if reqURL == "" {
		reqURL = fmt.Sprintf("%s/me/mailFolders/%s/messages?$top=%d&$orderby=receivedDateTime desc",
			c.baseURL, url.PathEscape(folderID), opt.top())
	}

	var resp struct {
		Value    []Message `json:"value"`
		NextLink string    `json:"@odata.nextLink"`
	}
	if err := c.doJSON(ctx, userID, http.MethodGet, reqURL, nil, &resp); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	return &MessagePage{Messages: resp.Value, NextLink: resp.NextLink}, nil
}

// SharedMailbox is a shared mailbox visible to the organization.
type SharedMailbox struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Mail        string `json:"mail"`
}

// MailboxListResult tags a shared-mailbox listing with its data source.
type MailboxListResult struct {
	Source    string          `json:"source"`
	Mailboxes []SharedMailbox `json:"mailboxes"`
}

// ListSharedMailboxes lists shared mailboxes, degrading to the static
// fallback payload when the upstream is unreachable.
func (c *Client) ListSharedMailboxes(ctx context.Context, userID uint) (*MailboxListResult, error) {
	// Shared mailboxes are users without sign-in; the closest Graph filter
	// is on mailbox settings, which requires directory read. Filter on
	// account type upstream and let the fallback cover outages.
	reqURL := fmt.Sprintf("%s/users?$filter=userType eq 'Member'&$select=id,displayName,mail&$top=100", c.baseURL)

	var resp struct {
		Value []SharedMailbox `json:"value"`
	}
	if err := c.doJSON(ctx, userID, http.MethodGet, reqURL, nil, &resp); err != nil {
		if IsDegradable(err) {
			return &MailboxListResult{Source: SourceFallback, Mailboxes: fallbackMailboxes}, nil
		}
		return nil, fmt.Errorf("list shared mailboxes: %w", err)
	}

	return &MailboxListResult{Source: SourceLive, Mailboxes: resp.Value}, nil
}

var fallbackMailboxes = []SharedMailbox{
	{ID: "fallback-info", DisplayName: "Info", Mail: "info@example.com"},
	{ID: "fallback-support", DisplayName: "Support", Mail: "support@example.com"},
}

// SendMailRequest describes an outbound notification mail.
type SendMailRequest struct {
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	To      []string `json:"to"`
}

// SendMail sends a notification mail as the signed-in user. Mutating
// operation: failures propagate, never fall back.
func (c *Client) SendMail(ctx context.Context, userID uint, req SendMailRequest) error {
	type recipient struct {
		EmailAddress struct {
			Address string `json:"address"`
		} `json:"emailAddress"`
	}

	recipients := make([]recipient, len(req.To))
	for i, addr := range req.To {
		recipients[i].EmailAddress.Address = addr
	}

	payload := map[string]interface{}{
		"message": map[string]interface{}{
			"subject": req.Subject,
			"body": map[string]string{
				"contentType": "Text",
				"content":     req.Body,
			},
			"toRecipients": recipients,
		},
		"saveToSentItems": true,
	}

	reqURL := fmt.Sprintf("%s/me/sendMail", c.baseURL)
	if err := c.doJSON(ctx, userID, http.MethodPost, reqURL, payload, nil); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
