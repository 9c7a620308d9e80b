package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/luvia-backend/internal/domain"
	"github.com/tbourn/luvia-backend/internal/services"
	"github.com/tbourn/luvia-backend/internal/utils"
)

// UpdateServiceRequest is the JSON payload for editing a catalog entry.
type UpdateServiceRequest struct {
	CategoryID  string          `json:"category_id" example:"travel"`
	Title       string          `json:"title"       example:"Đón tiễn sân bay"`
	Description string          `json:"description" example:"Xe riêng đón tại Tân Sơn Nhất"`
	Image       string          `json:"image"       example:"/uploads/3f0c.jpg"`
	Content     json.RawMessage `json:"content"     swaggertype:"object"`
}

// ServicesResponse wraps a list of catalog entries.
type ServicesResponse struct {
	Services []domain.Service `json:"services"`
}

// ListServices godoc
// @ID          listServices
// @Summary     List catalog services
// @Tags        Catalog
// @Produce     json
// @Success     200  {object} handlers.ServicesResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /services [get]
func (h *Handlers) ListServices(c *gin.Context) {
	items, err := h.catalog.List(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "failed to list services")
		return
	}
	ok(c, http.StatusOK, ServicesResponse{Services: items})
}

// SearchServices godoc
// @ID          searchServices
// @Summary     Search catalog services
// @Description Token search over title, category and description. Matching ignores case and Vietnamese diacritics ("san bay" finds "sân bay").
// @Tags        Catalog
// @Produce     json
// @Param       q  query  string  true  "Search text"
// @Param       k  query  int     false "Max results" minimum(1) maximum(50) default(10)
// @Success     200  {object} handlers.ServicesResponse
// @Failure     400  {object} handlers.ErrorResponse "Missing q"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /services/search [get]
func (h *Handlers) SearchServices(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "query parameter q is required")
		return
	}
	k := utils.IntParam(c.Query("k"), 10, 1, 50)
	items, err := h.catalog.Search(c.Request.Context(), q, k)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "failed to search services")
		return
	}
	ok(c, http.StatusOK, ServicesResponse{Services: items})
}

// GetService godoc
// @ID          getService
// @Summary     Get a catalog service
// @Tags        Catalog
// @Produce     json
// @Param       id  path  string  true  "Service ID"
// @Success     200  {object} domain.Service
// @Failure     404  {object} handlers.ErrorResponse "Service not found"
// @Router      /services/{id} [get]
func (h *Handlers) GetService(c *gin.Context) {
	svc, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, services.ErrServiceNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "service not found")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to load service")
	default:
		ok(c, http.StatusOK, svc)
	}
}

// UpdateService godoc
// @ID          updateService
// @Summary     Edit a catalog service
// @Tags        Catalog
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string  true  "Service ID"
// @Param       body  body  handlers.UpdateServiceRequest  true  "Replacement fields"
// @Success     200  {object} domain.Service
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object} handlers.ErrorResponse "Service not found"
// @Router      /services/{id} [put]
func (h *Handlers) UpdateService(c *gin.Context) {
	var req UpdateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	svc, err := h.catalog.Update(c.Request.Context(), c.Param("id"), services.UpdateServiceInput{
		CategoryID:  req.CategoryID,
		Title:       req.Title,
		Description: req.Description,
		Image:       req.Image,
		Content:     req.Content,
	})
	switch {
	case errors.Is(err, services.ErrInvalidService):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrServiceNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "service not found")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeUpdateFailed, "failed to update service")
	default:
		ok(c, http.StatusOK, svc)
	}
}

// PutSettingRequest sets one named settings document.
type PutSettingRequest struct {
	Key   string          `json:"key"   example:"site_info"`
	Value json.RawMessage `json:"value" swaggertype:"object"`
}

// GetSettings godoc
// @ID          getSettings
// @Summary     Read site settings
// @Description Returns every settings document keyed by name.
// @Tags        Settings
// @Produce     json
// @Success     200  {object} map[string]any
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /settings [get]
func (h *Handlers) GetSettings(c *gin.Context) {
	all, err := h.settings.All(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to load settings")
		return
	}
	ok(c, http.StatusOK, all)
}

// PutSetting godoc
// @ID          putSetting
// @Summary     Write a settings document
// @Tags        Settings
// @Accept      json
// @Security    BearerAuth
// @Param       body  body  handlers.PutSettingRequest  true  "Setting"
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Router      /settings [post]
func (h *Handlers) PutSetting(c *gin.Context) {
	var req PutSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	err := h.settings.Put(c.Request.Context(), req.Key, req.Value)
	switch {
	case errors.Is(err, services.ErrInvalidSetting):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeUpdateFailed, "failed to save setting")
	default:
		noContent(c)
	}
}
