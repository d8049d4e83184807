package issuance

import (
	"net/http"
	"time"

	"evcarbon-marketplace/pkg/db/pagination"
	"evcarbon-marketplace/pkg/errutil"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(engine *gin.Engine) {
	v1 := engine.Group("/v1")
	v1.GET("/issuances", h.list)
	v1.GET("/issuances/:id", h.get)
}

func (h *Handler) get(c *gin.Context) {
	issuance, err := h.svc.GetByRequestID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(errutil.Internal("failed to load issuance", err)) //nolint:errcheck
		return
	}
	if issuance == nil {
		c.Error(errutil.NotFound("issuance not found", nil)) //nolint:errcheck
		return
	}

	c.JSON(http.StatusOK, issuance)
}

func (h *Handler) list(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		c.Error(errutil.BadRequest("invalid pagination", err)) //nolint:errcheck
		return
	}

	filter := Filter{
		OwnerID: c.Query("owner_id"),
		Search:  c.Query("search"),
	}
	if from := c.Query("created_from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			c.Error(errutil.BadRequest("invalid created_from", err)) //nolint:errcheck
			return
		}
		filter.CreatedFrom = &t
	}
	if to := c.Query("created_to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			c.Error(errutil.BadRequest("invalid created_to", err)) //nolint:errcheck
			return
		}
		filter.CreatedTo = &t
	}

	limit := page.Limit
	if limit <= 0 {
		limit = 20
	}

	var cursorCreatedAt *time.Time
	if page.Cursor != "" {
		cursor, err := pagination.DecodeCursor(page.Cursor)
		if err != nil {
			c.Error(errutil.BadRequest("malformed cursor", err)) //nolint:errcheck
			return
		}
		if cursor.CreatedAt != "" {
			t, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
			if err != nil {
				c.Error(errutil.BadRequest("malformed cursor", err)) //nolint:errcheck
				return
			}
			cursorCreatedAt = &t
		}
	}

	issuances, err := h.svc.List(c.Request.Context(), filter, limit+1, cursorCreatedAt)
	if err != nil {
		c.Error(errutil.Internal("failed to list issuances", err)) //nolint:errcheck
		return
	}

	issuances, pageInfo := pagination.BuildCursorPageInfo(issuances, limit, func(i *CreditIssuance) string {
		cursor, _ := pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: i.CreatedAt.UTC().Format(time.RFC3339Nano),
			ID:        i.ID,
		})
		return cursor
	})

	c.JSON(http.StatusOK, gin.H{
		"data":      issuances,
		"page_info": pageInfo,
	})
}
