package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mikepea/dirdesk/pkg/dirdesk/models"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

var (
	// ErrNotConnected indicates no external account exists for the user.
	ErrNotConnected = errors.New("tokens: account not connected")

	// ErrNoRefreshToken indicates the stored account has no refresh token;
	// no upstream call is attempted. The only recovery is an administrative
	// reset followed by re-consent.
	ErrNoRefreshToken = errors.New("tokens: no refresh token")

	// ErrRefreshRejected indicates the provider rejected the refresh token.
	// The stored (expired) account is kept for diagnostics and reset.
	ErrRefreshRejected = errors.New("tokens: refresh rejected by provider")

	// ErrRefreshUnavailable indicates the token endpoint could not be
	// reached or returned a server error. The grant itself is not in
	// question; retrying later is expected to succeed without a reset.
	ErrRefreshUnavailable = errors.New("tokens: token endpoint unavailable")
)

// refreshMargin is the safety window before expiry within which a token is
// considered stale and refreshed ahead of use.
const refreshMargin = 5 * time.Minute

// Manager hands out currently-valid access tokens for local users,
// refreshing them against the provider's token endpoint when stale.
// Refreshes for the same user are serialized through a single-flight group:
// the provider may rotate the refresh token, so a second in-flight refresh
// with the old token would be rejected.
type Manager struct {
	db           *gorm.DB
	tokenURL     string
	clientID     string
	clientSecret string
	httpc        *http.Client
	group        singleflight.Group
}

// NewManager creates a token manager. tokenURL is the provider's OAuth2
// token endpoint.
func NewManager(db *gorm.DB, tokenURL, clientID, clientSecret string) *Manager {
	return &Manager{
		db:           db,
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpc:        &http.Client{Timeout: 30 * time.Second},
	}
}

// AccessToken returns a currently-valid access token for the user,
// refreshing it first when expired or inside the safety margin.
func (m *Manager) AccessToken(ctx context.Context, userID uint) (string, error) {
	var account models.ExternalAccount
	if err := m.db.Where("user_id = ? AND provider = ?", userID, models.ProviderMicrosoft).
		First(&account).Error; err != nil {
		return "", ErrNotConnected
	}

	if time.Until(account.ExpiresAt) > refreshMargin {
		return account.AccessToken, nil
	}

	if account.RefreshToken == "" {
		return "", ErrNoRefreshToken
	}

	// Callers arriving while a refresh for this user is in flight wait for
	// its result instead of starting their own.
	key := fmt.Sprintf("%s:%d", models.ProviderMicrosoft, userID)
	token, err, _ := m.group.Do(key, func() (interface{}, error) {
		return m.refresh(ctx, userID)
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

// tokenResponse is the provider token endpoint response.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
}

// refresh exchanges the stored refresh token for a new access token and
// persists the result. Runs inside the single-flight group.
func (m *Manager) refresh(ctx context.Context, userID uint) (string, error) {
	// Re-read inside the flight: a refresh that completed while we waited
	// on the group already stored a fresh token.
	var account models.ExternalAccount
	if err := m.db.Where("user_id = ? AND provider = ?", userID, models.ProviderMicrosoft).
		First(&account).Error; err != nil {
		return "", ErrNotConnected
	}
	if time.Until(account.ExpiresAt) > refreshMargin {
		return account.AccessToken, nil
	}
	if account.RefreshToken == "" {
		return "", ErrNoRefreshToken
	}

	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("client_id", m.clientID)
	if m.clientSecret != "" {
		data.Set("client_secret", m.clientSecret)
	}
	data.Set("refresh_token", account.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRefreshUnavailable, err)
	}
	defer resp.Body.Close()

	// 4xx means the grant itself was refused; anything else from the
	// endpoint is an outage, not a verdict on the stored token.
	if resp.StatusCode >= http.StatusInternalServerError {
		return "", fmt.Errorf("%w: token endpoint returned status %d", ErrRefreshUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token endpoint returned status %d", ErrRefreshRejected, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("%w: decode token response: %v", ErrRefreshUnavailable, err)
	}

	account.AccessToken = tr.AccessToken
	if tr.ExpiresIn > 0 {
		account.ExpiresAt = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	// The provider may rotate the refresh token; keep the prior one when it
	// does not.
	if tr.RefreshToken != "" {
		account.RefreshToken = tr.RefreshToken
	}
	if tr.Scope != "" {
		account.Scope = tr.Scope
	}

	if err := m.db.Save(&account).Error; err != nil {
		return "", fmt.Errorf("persist refreshed token: %w", err)
	}

	return account.AccessToken, nil
}

// Store persists a freshly granted credential pair for the user, replacing
// any existing account for the provider. Called by the connect callback.
func (m *Manager) Store(userID uint, accessToken, refreshToken string, expiresAt time.Time, scope string) error {
	var account models.ExternalAccount
	err := m.db.Where("user_id = ? AND provider = ?", userID, models.ProviderMicrosoft).
		First(&account).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		account = models.ExternalAccount{
			UserID:   userID,
			Provider: models.ProviderMicrosoft,
		}
	}

	account.AccessToken = accessToken
	if refreshToken != "" {
		account.RefreshToken = refreshToken
	}
	account.ExpiresAt = expiresAt
	account.Scope = scope

	return m.db.Save(&account).Error
}

// Reset deletes the user's external account and revokes all active sessions
// in one transaction, forcing re-consent. This is the supported recovery for
// missing or persistently rejected refresh tokens.
func (m *Manager) Reset(userID uint) error {
	return m.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND provider = ?", userID, models.ProviderMicrosoft).
			Delete(&models.ExternalAccount{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&models.Session{}).Error
	})
}

// AccountState describes the lifecycle state of a stored account.
type AccountState string

const (
	StateNotConnected AccountState = "not_connected"
	StateValid        AccountState = "valid"
	StateExpiring     AccountState = "expiring"
	StateExpired      AccountState = "expired"
	StateNoRefresh    AccountState = "no_refresh"
)

// State reports the current lifecycle state of the user's account without
// touching the provider.
func (m *Manager) State(userID uint) (AccountState, *models.ExternalAccount) {
	var account models.ExternalAccount
	if err := m.db.Where("user_id = ? AND provider = ?", userID, models.ProviderMicrosoft).
		First(&account).Error; err != nil {
		return StateNotConnected, nil
	}

	switch {
	case time.Until(account.ExpiresAt) > refreshMargin:
		return StateValid, &account
	case time.Now().Before(account.ExpiresAt):
		if account.RefreshToken == "" {
			return StateNoRefresh, &account
		}
		return StateExpiring, &account
	default:
		if account.RefreshToken == "" {
			return StateNoRefresh, &account
		}
		return StateExpired, &account
	}
}
