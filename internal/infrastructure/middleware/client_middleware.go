package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"selfiebooth/internal/core/services"
	apperrors "selfiebooth/pkg/errors"
	"selfiebooth/pkg/logger"
)

const ClientCookie = "booth_client"

// ClientMiddleware gives every browser a stable client id carried in a
// signed cookie. A missing, expired or forged cookie yields a new client.
func ClientMiddleware(tokens *services.ClientTokenService, secure bool, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var clientID string
		if raw, err := c.Cookie(ClientCookie); err == nil && raw != "" {
			if claims, err := tokens.Validate(raw); err == nil {
				clientID = claims.ClientID
			} else {
				log.Debugw("Client cookie rejected", "error", err)
			}
		}

		if clientID == "" {
			id, token, err := tokens.NewClient()
			if err != nil {
				log.Errorw("Failed to issue client token", "error", err)
				c.Error(apperrors.WrapError(err, apperrors.ErrCodeInternal, "client token", http.StatusInternalServerError))
				c.Abort()
				return
			}
			clientID = id
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(ClientCookie, token, int(tokens.TTL().Seconds()), "/", "", secure, true)
		}

		c.Set(KeyClientID, clientID)
		c.Request = c.Request.WithContext(logger.WithClientID(c.Request.Context(), clientID))
		c.Next()
	}
}
