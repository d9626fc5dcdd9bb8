package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/widyatma/lantang/domain/repositories"
	"github.com/widyatma/lantang/internal/auth"
	"github.com/widyatma/lantang/internal/observability"
	"github.com/widyatma/lantang/internal/websocket"
)

// InitRoutes initializes all API routes
func InitRoutes(
	e *echo.Echo,
	deps websocket.Deps,
	tokens *auth.TokenService,
	store repositories.SessionStore,
	tokenTTL time.Duration,
	allowAnyOrigin bool,
) {
	logger := deps.Logger
	upgrader := websocket.NewUpgrader(allowAnyOrigin)

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"status":          "ok",
			"service":         "lantang-server",
			"active_sessions": deps.Registry.ActiveCount(),
		})
	})

	// Prometheus scrape endpoint
	e.GET("/metrics", echo.WrapHandler(observability.MetricsHandler()))

	v1 := e.Group("/api/v1")

	v1.POST("/auth/token", func(c echo.Context) error {
		return issueToken(c, tokens, tokenTTL, logger)
	})

	v1.GET("/conversations", func(c echo.Context) error {
		return getConversations(c, tokens, store, logger)
	})

	// WebSocket endpoint with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		return websocketWithAuth(deps, tokens, upgrader, c)
	})
}

func issueToken(c echo.Context, tokens *auth.TokenService, ttl time.Duration, logger *zap.Logger) error {
	var req TokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if strings.TrimSpace(req.UserID) == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "user_id is required",
		})
	}

	token, err := tokens.IssueUserToken(req.UserID)
	if err != nil {
		logger.Error("Failed to issue token",
			zap.String("user_id", req.UserID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	return c.JSON(http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(ttl),
		UserID:    req.UserID,
	})
}

func getConversations(c echo.Context, tokens *auth.TokenService, store repositories.SessionStore, logger *zap.Logger) error {
	ownerID, errResp := resolveBearer(c, tokens)
	if errResp != nil {
		return c.JSON(http.StatusUnauthorized, *errResp)
	}
	if store == nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "storage_unavailable",
			Message: "Conversation storage is not configured",
		})
	}

	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}

	exchanges, err := store.RecentExchanges(c.Request().Context(), ownerID, limit)
	if err != nil {
		logger.Error("Failed to load conversations",
			zap.String("owner_id", ownerID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to load conversation history",
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"exchanges": exchanges,
		"count":     len(exchanges),
	})
}

// websocketWithAuth upgrades an authenticated request and hands the
// connection to the session layer.
func websocketWithAuth(deps websocket.Deps, tokens *auth.TokenService, upgrader gorilla.Upgrader, c echo.Context) error {
	ownerID, errResp := resolveBearer(c, tokens)
	if errResp != nil {
		deps.Logger.Warn("WebSocket connection rejected",
			zap.String("reason", errResp.Error))
		return c.JSON(http.StatusUnauthorized, *errResp)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		deps.Logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	deps.Logger.Info("WebSocket connection authenticated",
		zap.String("owner_id", ownerID))
	websocket.ServeConn(deps, conn, ownerID)
	return nil
}

// resolveBearer extracts a token from the Authorization header, falling
// back to the "token" query parameter for browser WebSocket clients
// that cannot set headers.
func resolveBearer(c echo.Context, tokens *auth.TokenService) (string, *ErrorResponse) {
	var token string
	authHeader := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		token = strings.TrimPrefix(authHeader, "Bearer ")
	}
	if token == "" {
		token = c.QueryParam("token")
	}
	if token == "" {
		return "", &ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required",
		}
	}

	ownerID, err := tokens.ResolveUser(token)
	if err != nil {
		return "", &ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		}
	}
	return ownerID, nil
}
