package verification

import (
	"encoding/json"
	"net/http"
	"time"

	"evcarbon-marketplace/pkg/correlation"
	"evcarbon-marketplace/pkg/db/pagination"
	"evcarbon-marketplace/pkg/errutil"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(engine *gin.Engine) {
	v1 := engine.Group("/v1")
	v1.POST("/verification-requests", h.create)
	v1.GET("/verification-requests", h.list)
	v1.GET("/verification-requests/:id", h.get)
	v1.POST("/verification-requests/:id/approve", h.approve)
	v1.POST("/verification-requests/:id/reject", h.reject)
}

type createRequestBody struct {
	OwnerID    string          `json:"owner_id" binding:"required"`
	TripID     string          `json:"trip_id" binding:"required"`
	DistanceKm float64         `json:"distance_km" binding:"required"`
	EnergyKwh  float64         `json:"energy_kwh" binding:"required"`
	Checksum   string          `json:"checksum" binding:"required"`
	Notes      *string         `json:"notes"`
	Metadata   json.RawMessage `json:"metadata"`
}

func (h *Handler) create(c *gin.Context) {
	var body createRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err)) //nolint:errcheck
		return
	}

	request, err := h.svc.Create(c.Request.Context(), NewRequestInput{
		OwnerID:    body.OwnerID,
		TripID:     body.TripID,
		DistanceKm: body.DistanceKm,
		EnergyKwh:  body.EnergyKwh,
		Checksum:   body.Checksum,
		Notes:      body.Notes,
		Metadata:   datatypes.JSON(body.Metadata),
	})
	if err != nil {
		c.Error(err) //nolint:errcheck
		return
	}

	c.JSON(http.StatusCreated, request)
}

type approveRequestBody struct {
	VerifierID     string  `json:"verifier_id" binding:"required"`
	Notes          *string `json:"notes"`
	IdempotencyKey string  `json:"idempotency_key"`
	CorrelationID  string  `json:"correlation_id"`
}

func (h *Handler) approve(c *gin.Context) {
	var body approveRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err)) //nolint:errcheck
		return
	}

	correlationID := body.CorrelationID
	if correlationID == "" {
		correlationID = correlation.FromContext(c.Request.Context())
	}

	request, err := h.svc.Approve(c.Request.Context(), ApproveInput{
		RequestID:      c.Param("id"),
		VerifierID:     body.VerifierID,
		Notes:          body.Notes,
		IdempotencyKey: body.IdempotencyKey,
		CorrelationID:  correlationID,
	})
	if err != nil {
		c.Error(err) //nolint:errcheck
		return
	}

	c.JSON(http.StatusOK, request)
}

type rejectRequestBody struct {
	VerifierID string `json:"verifier_id" binding:"required"`
	Reason     string `json:"reason" binding:"required"`
}

func (h *Handler) reject(c *gin.Context) {
	var body rejectRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err)) //nolint:errcheck
		return
	}

	request, err := h.svc.Reject(c.Request.Context(), RejectInput{
		RequestID:  c.Param("id"),
		VerifierID: body.VerifierID,
		Reason:     body.Reason,
	})
	if err != nil {
		c.Error(err) //nolint:errcheck
		return
	}

	c.JSON(http.StatusOK, request)
}

func (h *Handler) get(c *gin.Context) {
	request, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err) //nolint:errcheck
		return
	}

	c.JSON(http.StatusOK, request)
}

func (h *Handler) list(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		c.Error(errutil.BadRequest("invalid pagination", err)) //nolint:errcheck
		return
	}

	filter := Filter{
		Status:  Status(c.Query("status")),
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

	requests, pageInfo, err := h.svc.List(c.Request.Context(), filter, page)
	if err != nil {
		c.Error(err) //nolint:errcheck
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      requests,
		"page_info": pageInfo,
	})
}
