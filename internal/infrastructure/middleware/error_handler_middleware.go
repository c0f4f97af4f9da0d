package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"selfiebooth/internal/core/domain"
	apperrors "selfiebooth/pkg/errors"
	"selfiebooth/pkg/i18n"
	"selfiebooth/pkg/logger"
)

// AppErrorFrom maps domain failures to the error taxonomy shown to users.
func AppErrorFrom(err error) *apperrors.AppError {
	if appErr := apperrors.GetAppError(err); appErr != nil {
		return appErr
	}

	wrap := func(code apperrors.ErrorCode, status int, key string) *apperrors.AppError {
		e := apperrors.WrapError(err, code, err.Error(), status)
		if key != "" {
			e.Localized(key)
		}
		return e
	}

	switch {
	case errors.Is(err, domain.ErrTenantNotFound):
		return wrap(apperrors.ErrCodeTenantNotFound, http.StatusNotFound, i18n.TenantNotFound)
	case errors.Is(err, domain.ErrInvalidCredentials):
		return wrap(apperrors.ErrCodeUnauthorized, http.StatusUnauthorized, i18n.AuthInvalidCredentials)
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrSessionExpired):
		return wrap(apperrors.ErrCodeUnauthorized, http.StatusUnauthorized, i18n.AuthLoginRequired)
	case errors.Is(err, domain.ErrAdminLoginDisabled):
		return wrap(apperrors.ErrCodeForbidden, http.StatusForbidden, i18n.AuthAdminDisabled)
	case errors.Is(err, domain.ErrUserExists):
		return wrap(apperrors.ErrCodeConflict, http.StatusConflict, i18n.UsersDuplicate)
	case errors.Is(err, domain.ErrTenantExists):
		return wrap(apperrors.ErrCodeConflict, http.StatusConflict, "")
	case errors.Is(err, domain.ErrVersionConflict):
		return wrap(apperrors.ErrCodeConflict, http.StatusConflict, i18n.SettingsConflict)
	case errors.Is(err, domain.ErrSelfStatusChange):
		return wrap(apperrors.ErrCodeInvalidInput, http.StatusBadRequest, i18n.UsersSelfStatus)
	case errors.Is(err, domain.ErrInvalidFrame):
		return wrap(apperrors.ErrCodeInvalidInput, http.StatusBadRequest, i18n.FramesNameURLRequired)
	case errors.Is(err, domain.ErrInvalidSettings), errors.Is(err, domain.ErrUnknownPlan):
		return wrap(apperrors.ErrCodeInvalidInput, http.StatusBadRequest, "")
	case errors.Is(err, domain.ErrNothingCaptured):
		return wrap(apperrors.ErrCodeInvalidInput, http.StatusBadRequest, i18n.CaptureFailed)
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrFrameNotFound),
		errors.Is(err, domain.ErrCaptureNotFound):
		return wrap(apperrors.ErrCodeNotFound, http.StatusNotFound, "")
	case errors.Is(err, domain.ErrCameraDenied):
		return wrap(apperrors.ErrCodeCameraUnavailable, http.StatusConflict, i18n.CameraDenied)
	case errors.Is(err, domain.ErrVideoNotReady), errors.Is(err, domain.ErrInvalidTransition):
		return wrap(apperrors.ErrCodeCameraNotReady, http.StatusConflict, i18n.CameraNotReady)
	case errors.Is(err, domain.ErrGeocodingFailed), errors.Is(err, domain.ErrAssetUnavailable):
		return wrap(apperrors.ErrCodeBadGateway, http.StatusBadGateway, "")
	case errors.Is(err, context.DeadlineExceeded):
		return wrap(apperrors.ErrCodeServiceUnavailable, http.StatusServiceUnavailable, "")
	}
	return apperrors.WrapError(err, apperrors.ErrCodeInternal, "Internal server error", http.StatusInternalServerError).
		Localized(i18n.ErrUnexpected)
}

// ErrorHandlerMiddleware renders the last handler error as
// {error, message, details} in the request language.
func ErrorHandlerMiddleware(catalog *i18n.Catalog, log *zap.SugaredLogger) gin.HandlerFunc {
	cl := logger.NewContextLogger(log.Desugar())
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		appErr := AppErrorFrom(err)

		ctx := c.Request.Context()
		if appErr.HTTPStatus >= http.StatusInternalServerError {
			cl.LogError(ctx, err, "Request failed",
				zap.String("code", string(appErr.Code)),
				zap.Int("status", appErr.HTTPStatus),
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method),
			)
		} else {
			cl.Sugar(ctx).Infow("Request rejected",
				"code", appErr.Code,
				"status", appErr.HTTPStatus,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
				"error", err.Error(),
			)
		}

		message := appErr.Message
		if appErr.MessageKey != "" {
			message = catalog.T(Language(c), appErr.MessageKey, appErr.Args...)
		}

		body := gin.H{
			"error":   string(appErr.Code),
			"message": message,
		}
		if len(appErr.Context) > 0 {
			body["details"] = appErr.Context
		}
		c.JSON(appErr.HTTPStatus, body)
	}
}

// RecoveryMiddleware recovers from panics and returns proper error responses
func RecoveryMiddleware(log *zap.SugaredLogger) gin.HandlerFunc {
	cl := logger.NewContextLogger(log.Desugar())
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				cl.Sugar(c.Request.Context()).Errorw("Panic recovered",
					"error", err,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":   string(apperrors.ErrCodeInternal),
					"message": "Internal server error",
				})
			}
		}()

		c.Next()
	}
}

// AccessLogMiddleware writes one line per finished request, tagged with the
// request scoped ids set further down the chain.
func AccessLogMiddleware(log *zap.SugaredLogger) gin.HandlerFunc {
	cl := logger.NewContextLogger(log.Desugar())
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		cl.LogRequest(c.Request.Context(), c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start).Milliseconds())
	}
}
