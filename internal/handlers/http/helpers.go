package http

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"selfiebooth/internal/core/domain"
	apperrors "selfiebooth/pkg/errors"
)

// abortWith hands err to the error middleware and stops the chain.
func abortWith(c *gin.Context, err error) {
	c.Error(err)
	c.Abort()
}

func frameIDParam(c *gin.Context) (domain.FrameID, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		abortWith(c, apperrors.NewInvalidInputError("invalid frame id"))
		return 0, false
	}
	return domain.FrameID(id), true
}

func invalidInput(message string) error {
	return apperrors.NewInvalidInputError(message)
}

// tenantPrefixes are the mount points of tenant routes: path mode, and the
// bare root where the subdomain names the tenant.
var tenantPrefixes = []string{"/t/:slug", ""}
