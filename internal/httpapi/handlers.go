package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"homeservices-platform/internal/auth"
	"homeservices-platform/internal/calls"
	"homeservices-platform/internal/notify"
	"homeservices-platform/internal/rbac"
	"homeservices-platform/internal/reporting"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth      *auth.Manager
	Calls     *calls.Service
	Reporting *reporting.Service
	Notify    *notify.Scheduler
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || !rbac.IsValidRole(req.Role) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id and a valid role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Calls ---

type initiateCallRequest struct {
	ProviderID       string `json:"provider_id"`
	ServiceRequestID string `json:"service_request_id,omitempty"`
}

func (h Handlers) InitiateCall(c *gin.Context) {
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "calls not configured"})
		return
	}
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	var req initiateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	call, err := h.Calls.Initiate(c.Request.Context(), calls.InitiateInput{
		CustomerID:       userID,
		ProviderID:       req.ProviderID,
		ServiceRequestID: req.ServiceRequestID,
	})
	if err != nil {
		abortCallsError(c, err)
		return
	}
	c.JSON(http.StatusCreated, call)
}

type updateCallStatusRequest struct {
	Status string `json:"status"`
}

func (h Handlers) UpdateCallStatus(c *gin.Context) {
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "calls not configured"})
		return
	}
	var req updateCallStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	call, err := h.Calls.Transition(c.Request.Context(), c.Param("call_id"), calls.CallStatus(req.Status))
	if err != nil {
		abortCallsError(c, err)
		return
	}
	c.JSON(http.StatusOK, call)
}

type updateCallDetailsRequest struct {
	DurationSeconds int    `json:"duration_seconds"`
	RecordingURL    string `json:"recording_url,omitempty"`
}

func (h Handlers) UpdateCallDetails(c *gin.Context) {
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "calls not configured"})
		return
	}
	var req updateCallDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	call, err := h.Calls.UpdateDetails(c.Request.Context(), c.Param("call_id"), req.DurationSeconds, req.RecordingURL)
	if err != nil {
		abortCallsError(c, err)
		return
	}
	c.JSON(http.StatusOK, call)
}

func (h Handlers) GetCall(c *gin.Context) {
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "calls not configured"})
		return
	}
	call, err := h.Calls.Get(c.Request.Context(), c.Param("call_id"))
	if err != nil {
		abortCallsError(c, err)
		return
	}
	c.JSON(http.StatusOK, call)
}

func (h Handlers) ListCalls(c *gin.Context) {
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "calls not configured"})
		return
	}
	var f calls.ListFilter
	f.CustomerID = c.Query("customer_id")
	f.ProviderID = c.Query("provider_id")
	f.Status = calls.CallStatus(c.Query("status"))

	// Non-admins only see their own calls.
	role, _ := auth.Role(c.Request.Context())
	if !rbac.IsAdmin(role) {
		userID, err := auth.UserID(c.Request.Context())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}
		switch role {
		case rbac.RoleProvider:
			f.ProviderID = userID
			f.CustomerID = ""
		default:
			f.CustomerID = userID
			f.ProviderID = ""
		}
	}

	out, err := h.Calls.List(c.Request.Context(), f)
	if err != nil {
		abortCallsError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": out})
}

func abortCallsError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, calls.ErrValidation):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, calls.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
	case errors.Is(err, calls.ErrInvalidTransition):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// --- Notifications ---

type sendNotificationRequest struct {
	RecipientIDs []string       `json:"recipient_ids"`
	TemplateID   string         `json:"template_id"`
	Channels     []string       `json:"channels"`
	Payload      map[string]any `json:"payload,omitempty"`
	DeliverAt    *time.Time     `json:"deliver_at,omitempty"`
	DeliverAll   bool           `json:"deliver_all,omitempty"`
}

// SendNotification queues a notification for each recipient, immediately or
// at a future time. Admin-only; the realtime event path produces its own
// notifications internally.
func (h Handlers) SendNotification(c *gin.Context) {
	if h.Notify == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "notify not configured"})
		return
	}
	var req sendNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if len(req.RecipientIDs) == 0 || req.TemplateID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "recipient_ids and template_id required"})
		return
	}
	order := make([]notify.Channel, 0, len(req.Channels))
	for _, ch := range req.Channels {
		switch v := notify.Channel(ch); v {
		case notify.ChannelLive, notify.ChannelEmail, notify.ChannelSMS, notify.ChannelPush:
			order = append(order, v)
		default:
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown channel " + ch})
			return
		}
	}
	if len(order) == 0 {
		order = []notify.Channel{notify.ChannelLive, notify.ChannelPush}
	}

	deliverAt := time.Now()
	if req.DeliverAt != nil {
		deliverAt = *req.DeliverAt
	}

	ids := make([]string, 0, len(req.RecipientIDs))
	for _, recipient := range req.RecipientIDs {
		env := notify.NewEnvelope(recipient, req.TemplateID, order, req.Payload)
		env.DeliverAll = req.DeliverAll
		if err := h.Notify.Schedule(c.Request.Context(), env, deliverAt); err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "scheduling failed"})
			return
		}
		ids = append(ids, env.ID)
	}
	c.JSON(http.StatusAccepted, gin.H{"envelope_ids": ids})
}

// CancelNotification removes a future-dated envelope that has not been swept
// yet. Cancelling an already dispatched envelope is a no-op.
func (h Handlers) CancelNotification(c *gin.Context) {
	if h.Notify == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "notify not configured"})
		return
	}
	if err := h.Notify.Cancel(c.Request.Context(), c.Param("envelope_id")); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "cancel failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Reporting ---

func (h Handlers) CallsSummary(c *gin.Context) {
	if h.Reporting == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	rng, err := parseRange(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.Reporting.CallsSummary(c.Request.Context(), reporting.CallsSummaryRequest{
		Range:      rng,
		ProviderID: c.Query("provider_id"),
	})
	if err != nil {
		abortReportingError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) DeliverySummary(c *gin.Context) {
	if h.Reporting == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	rng, err := parseRange(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.Reporting.DeliverySummary(c.Request.Context(), reporting.DeliverySummaryRequest{Range: rng})
	if err != nil {
		abortReportingError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func abortReportingError(c *gin.Context, err error) {
	if errors.Is(err, reporting.ErrInvalidRequest) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func parseRange(c *gin.Context) (reporting.TimeRange, error) {
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		return reporting.TimeRange{}, errors.New("from must be RFC3339")
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		return reporting.TimeRange{}, errors.New("to must be RFC3339")
	}
	return reporting.TimeRange{From: from, To: to}, nil
}
