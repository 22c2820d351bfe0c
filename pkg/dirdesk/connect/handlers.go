package connect

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mikepea/dirdesk/pkg/dirdesk/auth"
	"github.com/mikepea/dirdesk/pkg/dirdesk/tokens"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

// defaultScopes requested when connecting an account. offline_access is
// required for refresh tokens; the rest cover the directory, calendar, mail,
// and file surfaces the console uses.
var defaultScopes = []string{
	oidc.ScopeOpenID,
	"profile",
	"email",
	"offline_access",
	"User.Read",
	"User.Read.All",
	"Sites.Read.All",
	"Mail.Read",
	"Mail.Send",
	"Calendars.Read",
	"Files.ReadWrite",
}

// Handler handles the "connect your Microsoft account" flow. The callback
// persists the granted credential pair as the user's ExternalAccount.
type Handler struct {
	db      *gorm.DB
	manager *tokens.Manager
	baseURL string

	mu       sync.Mutex
	provider *oidc.Provider
	config   *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewHandler creates a new connect handler. Provider settings come from
// MSGRAPH_TENANT_ID, MSGRAPH_CLIENT_ID, and MSGRAPH_CLIENT_SECRET.
func NewHandler(db *gorm.DB, manager *tokens.Manager, baseURL string) *Handler {
	return &Handler{db: db, manager: manager, baseURL: baseURL}
}

// TenantID returns the configured directory tenant id, empty when none is
// set. The URL builders below fall back to the multi-tenant "common"
// endpoint in that case.
func TenantID() string {
	return os.Getenv("MSGRAPH_TENANT_ID")
}

// Issuer returns the tenant's OIDC issuer URL.
func Issuer() string {
	tenant := TenantID()
	if tenant == "" {
		tenant = "common"
	}
	return "https://login.microsoftonline.com/" + tenant + "/v2.0"
}

// TokenURL returns the tenant's OAuth2 token endpoint, used by the token
// manager for refreshes.
func TokenURL() string {
	tenant := TenantID()
	if tenant == "" {
		tenant = "common"
	}
	return "https://login.microsoftonline.com/" + tenant + "/oauth2/v2.0/token"
}

// ensureProvider lazily performs OIDC discovery; discovery needs the network
// so it is deferred until the flow is first used.
func (h *Handler) ensureProvider(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.provider != nil {
		return nil
	}

	discoverCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	provider, err := oidc.NewProvider(discoverCtx, Issuer())
	if err != nil {
		return err
	}

	clientID := os.Getenv("MSGRAPH_CLIENT_ID")
	h.provider = provider
	h.config = &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: os.Getenv("MSGRAPH_CLIENT_SECRET"),
		Endpoint:     provider.Endpoint(),
		RedirectURL:  h.baseURL + "/api/connect/callback",
		Scopes:       defaultScopes,
	}
	h.verifier = provider.Verifier(&oidc.Config{ClientID: clientID})
	return nil
}

// StateData stores connect state for callback validation
type StateData struct {
	UserID    uint   `json:"user_id"`
	ReturnURL string `json:"return_url"`
	Nonce     string `json:"nonce"`
}

// Start returns the authorization URL for connecting the caller's account
func (h *Handler) Start(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	if err := h.ensureProvider(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Identity provider unreachable"})
		return
	}

	nonce := uuid.NewString()
	stateData := StateData{
		UserID:    userID,
		ReturnURL: c.Query("return_url"),
		Nonce:     nonce,
	}
	stateJSON, _ := json.Marshal(stateData)
	state := base64.URLEncoding.EncodeToString(stateJSON)

	authURL := h.config.AuthCodeURL(state, oidc.Nonce(nonce), oauth2.AccessTypeOffline)

	c.JSON(http.StatusOK, gin.H{"auth_url": authURL})
}

// Callback handles the provider redirect and stores the credential pair
func (h *Handler) Callback(c *gin.Context) {
	stateParam := c.Query("state")
	stateJSON, err := base64.URLEncoding.DecodeString(stateParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid state"})
		return
	}

	var stateData StateData
	if err := json.Unmarshal(stateJSON, &stateData); err != nil || stateData.UserID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid state"})
		return
	}

	code := c.Query("code")
	if code == "" {
		errorDesc := c.Query("error_description")
		if errorDesc == "" {
			errorDesc = c.Query("error")
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Authorization failed: " + errorDesc})
		return
	}

	if err := h.ensureProvider(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Identity provider unreachable"})
		return
	}

	ctx := c.Request.Context()
	oauth2Token, err := h.config.Exchange(ctx, code)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to exchange code"})
		return
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "No ID token in response"})
		return
	}

	idToken, err := h.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid ID token"})
		return
	}

	var claims struct {
		Nonce string `json:"nonce"`
	}
	if err := idToken.Claims(&claims); err == nil && claims.Nonce != "" && claims.Nonce != stateData.Nonce {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nonce mismatch"})
		return
	}

	refreshToken, _ := oauth2Token.Extra("refresh_token").(string)
	if refreshToken == "" {
		refreshToken = oauth2Token.RefreshToken
	}
	scope, _ := oauth2Token.Extra("scope").(string)

	if err := h.manager.Store(stateData.UserID, oauth2Token.AccessToken, refreshToken,
		oauth2Token.Expiry, scope); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store account"})
		return
	}

	returnURL := stateData.ReturnURL
	if returnURL == "" || !strings.HasPrefix(returnURL, "/") {
		returnURL = "/settings"
	}
	c.Redirect(http.StatusFound, returnURL)
}

// Status reports whether the caller has a connected account
func (h *Handler) Status(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	state, _ := h.manager.State(userID)
	c.JSON(http.StatusOK, gin.H{
		"connected": state != tokens.StateNotConnected,
		"state":     state,
	})
}

// RegisterRoutes registers connect routes on the given router group.
// The callback is public (hit by the provider redirect); start and status
// require auth.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/start", auth.AuthMiddleware(h.db), h.Start)
	rg.GET("/callback", h.Callback)
	rg.GET("/status", auth.AuthMiddleware(h.db), h.Status)
}
