package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"selfiebooth/internal/core/domain"
	"selfiebooth/internal/core/services"
	"selfiebooth/internal/infrastructure/middleware"
	"selfiebooth/internal/infrastructure/preview"
	apperrors "selfiebooth/pkg/errors"
	"selfiebooth/pkg/i18n"
)

// Response headers of an export.
const (
	HeaderSaveInstructions = "X-Save-Instructions"
	HeaderDroppedOverlays  = "X-Dropped-Overlays"
)

// BoothHandler is the tenant booth: camera lifecycle, frame choice, export
// and share links.
type BoothHandler struct {
	tenants      *services.TenantService
	captures     *services.CaptureManager
	exports      *services.ExportService
	shares       *services.ShareService
	locations    *services.LocationService
	preview      *preview.Server
	catalog      *i18n.Catalog
	publicOrigin string
}

func NewBoothHandler(
	tenants *services.TenantService,
	captures *services.CaptureManager,
	exports *services.ExportService,
	shares *services.ShareService,
	locations *services.LocationService,
	previewServer *preview.Server,
	catalog *i18n.Catalog,
	publicOrigin string,
) *BoothHandler {
	return &BoothHandler{
		tenants:      tenants,
		captures:     captures,
		exports:      exports,
		shares:       shares,
		locations:    locations,
		preview:      previewServer,
		catalog:      catalog,
		publicOrigin: publicOrigin,
	}
}

// SetupRoutes serves every booth twice: under /t/:slug and at the root of
// the tenant's own subdomain.
func (h *BoothHandler) SetupRoutes(router *gin.Engine) {
	for _, prefix := range tenantPrefixes {
		h.register(router.Group(prefix, middleware.TenantMiddleware(h.tenants)))
	}
}

func (h *BoothHandler) register(booth *gin.RouterGroup) {
	booth.GET("", h.GetBooth)

	capture := booth.Group("", middleware.RequireActiveSubscription(h.tenants))
	{
		capture.GET("/capture/feed", h.Feed)
		capture.GET("/capture", h.GetCapture)
		capture.POST("/capture/start", h.Start)
		capture.POST("/capture", h.Capture)
		capture.POST("/capture/retake", h.Retake)
		capture.PUT("/capture/frame", h.SelectFrame)
		capture.GET("/capture/image", h.CapturedImage)
		capture.POST("/capture/export", h.Export)
		capture.DELETE("/capture", h.Stop)
		capture.POST("/location/text", h.LocationText)
		capture.GET("/share", h.Share)
	}
}

// GetBooth is what the booth page renders before the camera starts. It is
// served for lapsed tenants too, so the page can show the contact.
func (h *BoothHandler) GetBooth(c *gin.Context) {
	tenant := middleware.Tenant(c)
	settings := tenant.Settings

	resp := gin.H{
		"tenant": gin.H{
			"id":      tenant.ID,
			"slug":    tenant.Slug,
			"name":    tenant.Name,
			"email":   tenant.Email,
			"phone":   tenant.Phone,
			"address": tenant.Address,
		},
		"settings":           settings,
		"textStyle":          settings.TextStyle(),
		"subscriptionActive": tenant.ID == services.DemoSlug || h.tenants.IsSubscriptionActive(tenant),
		"url":                services.TenantURL(h.publicOrigin, tenant),
	}
	if frame, ok := domain.SelectFrame(settings.Frames); ok {
		resp["selectedFrame"] = frame
	}
	c.JSON(http.StatusOK, resp)
}

// Feed upgrades to the preview socket that carries the camera frames.
func (h *BoothHandler) Feed(c *gin.Context) {
	h.preview.ServeConn(c.Writer, c.Request, preview.Peer{
		ClientID: middleware.ClientID(c),
		Tenant:   middleware.Tenant(c),
		Language: middleware.Language(c),
	})
}

func (h *BoothHandler) session(c *gin.Context) (*services.CaptureSession, bool) {
	session, err := h.captures.Lookup(middleware.ClientID(c), middleware.Tenant(c).ID)
	if err != nil {
		abortWith(c, err)
		return nil, false
	}
	return session, true
}

func (h *BoothHandler) GetCapture(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	snap := session.Snapshot()
	snap.CapturedImage = ""
	c.JSON(http.StatusOK, snap)
}

// Start acquires the camera; the page must already stream frames over the
// feed socket.
func (h *BoothHandler) Start(c *gin.Context) {
	tenant := middleware.Tenant(c)
	session := h.captures.Session(middleware.ClientID(c), tenant.ID)

	if err := session.Start(c.Request.Context()); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, session.Snapshot())
}

type CaptureRequest struct {
	// Release stops the camera after the capture. iOS pages always do.
	Release *bool `json:"release,omitempty"`
}

func (h *BoothHandler) Capture(c *gin.Context) {
	var req CaptureRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWith(c, apperrors.NewInvalidInputError("invalid request format"))
			return
		}
	}
	release := services.IsIOS(c.Request.UserAgent())
	if req.Release != nil {
		release = *req.Release
	}

	session, ok := h.session(c)
	if !ok {
		return
	}
	snap, err := session.Capture(c.Request.Context(), release)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *BoothHandler) Retake(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	if err := session.Retake(c.Request.Context()); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, session.Snapshot())
}

type SelectFrameRequest struct {
	FrameID *domain.FrameID `json:"frameId" binding:"required"`
}

func (h *BoothHandler) SelectFrame(c *gin.Context) {
	var req SelectFrameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, apperrors.NewInvalidInputError("frameId is required"))
		return
	}
	tenant := middleware.Tenant(c)
	if _, ok := tenant.Settings.FrameByID(*req.FrameID); !ok {
		abortWith(c, domain.ErrFrameNotFound)
		return
	}

	session := h.captures.Session(middleware.ClientID(c), tenant.ID)
	session.SelectFrame(*req.FrameID)
	c.JSON(http.StatusOK, session.Snapshot())
}

// CapturedImage returns the mirrored still as PNG.
func (h *BoothHandler) CapturedImage(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	dataURL, err := session.CapturedImage()
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"image": dataURL})
}

type ExportRequest struct {
	FrameID   *domain.FrameID         `json:"frameId,omitempty"`
	ShowFrame *bool                   `json:"showFrame,omitempty"`
	ShowLogo  *bool                   `json:"showLogo,omitempty"`
	ShowText  *bool                   `json:"showText,omitempty"`
	Location  *domain.LocationRequest `json:"location,omitempty"`
}

func orTrue(b *bool) bool {
	return b == nil || *b
}

// Export rasterizes the captured still with the overlays and streams the
// PNG. iOS gets it inline with save instructions; everyone else downloads.
func (h *BoothHandler) Export(c *gin.Context) {
	var req ExportRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWith(c, apperrors.NewInvalidInputError("invalid request format"))
			return
		}
	}

	tenant := middleware.Tenant(c)
	session, ok := h.session(c)
	if !ok {
		return
	}
	photo, err := session.CapturedImage()
	if err != nil {
		abortWith(c, err)
		return
	}

	frameID := req.FrameID
	if frameID == nil {
		frameID = session.Snapshot().FrameID
	}

	ctx := c.Request.Context()
	caption, err := h.locations.CaptionText(ctx, middleware.Language(c), tenant.Settings, req.Location)
	if err != nil {
		abortWith(c, err)
		return
	}

	result, err := h.exports.Export(ctx, services.ExportRequest{
		Tenant:    tenant,
		Photo:     photo,
		FrameID:   frameID,
		ShowFrame: orTrue(req.ShowFrame),
		ShowLogo:  orTrue(req.ShowLogo),
		ShowText:  orTrue(req.ShowText),
		Caption:   caption,
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		abortWith(c, err)
		return
	}

	c.Header("Content-Disposition", result.Disposition+`; filename="`+result.Filename+`"`)
	if result.Disposition == services.DispositionInline {
		c.Header(HeaderSaveInstructions, h.catalog.T(middleware.Language(c), i18n.ExportIOSInstructions))
	}
	if len(result.Dropped) > 0 {
		c.Header(HeaderDroppedOverlays, strings.Join(result.Dropped, ","))
	}
	c.Header("Content-Length", strconv.Itoa(len(result.PNG)))
	c.Data(http.StatusOK, "image/png", result.PNG)
}

func (h *BoothHandler) Stop(c *gin.Context) {
	h.captures.Close(middleware.ClientID(c), middleware.Tenant(c).ID)
	c.Status(http.StatusNoContent)
}

// LocationText turns the page's geolocation result into caption text.
func (h *BoothHandler) LocationText(c *gin.Context) {
	var req domain.LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		abortWith(c, apperrors.NewInvalidInputError("status is required"))
		return
	}
	tenant := middleware.Tenant(c)

	text, err := h.locations.LocationText(c.Request.Context(), middleware.Language(c), req, tenant.Settings.TextOverlay.LocationPrefix)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": text})
}

func (h *BoothHandler) Share(c *gin.Context) {
	tenant := middleware.Tenant(c)
	links := h.shares.Links(middleware.Language(c), services.TenantURL(h.publicOrigin, tenant), tenant.Name)
	c.JSON(http.StatusOK, links)
}
