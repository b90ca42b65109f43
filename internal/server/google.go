package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	oauthStateCookie = "vinculo_oauth_state"
	oauthStateMaxAge = 10 * time.Minute
)

// handleGoogleStart redirects staff to the Drive consent screen.
func (h *httpHandler) handleGoogleStart(c *gin.Context) {
	if h.oauth == nil {
		abortWithCode(c, http.StatusServiceUnavailable, "google oauth is not configured", "google.not_configured")
		return
	}
	state := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, state, int(oauthStateMaxAge.Seconds()), "/api/google", "", c.Request.TLS != nil, true)
	c.Redirect(http.StatusFound, h.oauth.ConsentURL(state))
}

// handleGoogleCallback exchanges the authorization code and shows the tokens so the
// refresh token can be copied into the service configuration.
func (h *httpHandler) handleGoogleCallback(c *gin.Context) {
	if h.oauth == nil {
		abortWithCode(c, http.StatusServiceUnavailable, "google oauth is not configured", "google.not_configured")
		return
	}
	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		abortWithCode(c, http.StatusBadRequest, "missing authorization code", "google.missing_code")
		return
	}
	expectedState, err := c.Cookie(oauthStateCookie)
	if err != nil || expectedState == "" || expectedState != c.Query("state") {
		abortWithCode(c, http.StatusBadRequest, "oauth state mismatch", "google.state_mismatch")
		return
	}
	c.SetCookie(oauthStateCookie, "", -1, "/api/google", "", c.Request.TLS != nil, true)

	token, err := h.oauth.Exchange(c.Request.Context(), code)
	if err != nil {
		h.logger.Error("google token exchange failed", zap.Error(err))
		abortWithCode(c, http.StatusBadGateway, "google token exchange failed", "google.exchange_failed")
		return
	}
	if token.RefreshToken == "" {
		h.logger.Warn("google token exchange returned no refresh token")
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  token.AccessToken,
		"refresh_token": token.RefreshToken,
		"token_type":    token.TokenType,
		"expiry":        token.Expiry,
	})
}
