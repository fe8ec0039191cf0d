package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/job-tracker/internal/models"
	"github.com/justsurfingit/job-tracker/internal/services"
	"go.uber.org/zap"
)

const accountKey = "auth.account"

// AccountLookup resolves the account named by a verified token.
type AccountLookup interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

// RequireAuth rejects requests without a valid access token and stores the resolved
// account for CurrentAccount.
func RequireAuth(tokens *TokenManager, accounts AccountLookup, logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("auth")
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			unauthorized(c, "Authentication credentials were not provided.")
			return
		}

		claims, err := tokens.Verify(raw, AccessToken)
		if err != nil {
			logger.Debug("rejected bearer token", zap.String("path", c.Request.URL.Path), zap.Error(err))
			unauthorized(c, "Given token not valid for any token type")
			return
		}
		userID, err := claims.UserID()
		if err != nil {
			unauthorized(c, "Given token not valid for any token type")
			return
		}

		user, err := accounts.GetByID(c.Request.Context(), userID)
		if errors.Is(err, services.ErrNotFound) {
			unauthorized(c, "User not found")
			return
		}
		if err != nil {
			logger.Error("failed to load account", zap.Uint("user_id", userID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error."})
			return
		}

		c.Set(accountKey, user)
		c.Next()
	}
}

// CurrentAccount returns the account RequireAuth attached to the request.
func CurrentAccount(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(accountKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(c *gin.Context, detail string) {
	c.Header("WWW-Authenticate", `Bearer realm="api"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": detail})
}
