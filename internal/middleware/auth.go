package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/taskflow-dev/taskflow/internal/apperr"
	"github.com/taskflow-dev/taskflow/internal/auth"
	"github.com/taskflow-dev/taskflow/internal/policy"
	"github.com/taskflow-dev/taskflow/internal/repository"
	"github.com/taskflow-dev/taskflow/internal/types"
)

type AuthenticatedUser struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (u AuthenticatedUser) Actor() policy.Actor {
	return policy.Actor{ID: u.ID, Role: u.Role}
}

const TokenCookie = "token"

// TokenFromRequest looks for a token in the Authorization header, then the
// token cookie, then the token query parameter. Browsers cannot set headers
// on a websocket handshake, hence the last two.
func TokenFromRequest(ctx *gin.Context) (string, error) {
	if authHeader := ctx.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)

		if len(parts) != 2 || parts[0] != "Bearer" {
			return "", errors.New("Authorization header format must be Bearer {token}")
		}
		return parts[1], nil
	}

	if cookie, err := ctx.Cookie(TokenCookie); err == nil && cookie != "" {
		return cookie, nil
	}

	if token := ctx.Query("token"); token != "" {
		return token, nil
	}

	return "", errors.New("Authorization token is required")
}

// AuthMiddleware verifies the token and loads the user, so role changes take
// effect without a new login.
func AuthMiddleware(tokens *auth.TokenIssuer, users *repository.UserRepository) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenString, err := TokenFromRequest(ctx)

		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		claims, err := tokens.VerifyJWT(tokenString)

		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		user, err := users.FindByID(ctx.Request.Context(), claims.UserID)

		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
				return
			}
			slog.Default().With("module", "middleware").ErrorContext(ctx.Request.Context(),
				"load authenticated user failed", "user_id", claims.UserID, "error", err.Error())
			ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		ctx.Set(types.ContextUserKey, AuthenticatedUser{
			ID:    user.ID,
			Name:  user.Name,
			Email: user.Email,
			Role:  user.Role,
		})
		ctx.Next()
	}
}

// Require rejects requests whose user may not perform action. It must run
// after AuthMiddleware.
func Require(action policy.Action) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		value, exists := ctx.Get(types.ContextUserKey)
		user, ok := value.(AuthenticatedUser)

		if !exists || !ok {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			return
		}

		if err := policy.Authorize(user.Actor(), action, nil); err != nil {
			ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": apperr.Message(err)})
			return
		}

		ctx.Next()
	}
}
