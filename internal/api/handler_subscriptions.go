package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"bioreactor-monitor/internal/apperr"
	"bioreactor-monitor/internal/model"
)

type putSubscriptionRequest struct {
	Endpoint           string  `json:"endpoint" binding:"required"`
	P256DH             string  `json:"p256dh" binding:"required"`
	Auth               string  `json:"auth" binding:"required"`
	SubscribedReactors []int64 `json:"subscribed_reactors"`
}

// PutSubscription handles the creation or replacement of a browser push subscription.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, apperr.CodeValidation, "invalid request")
		return
	}

	subscription := model.PushSubscription{
		Endpoint: req.Endpoint,
		P256DH:   req.P256DH,
		Auth:     req.Auth,
		UserID:   currentUser(c),
	}
	if err := h.store.PutPushSubscription(c.Request.Context(), &subscription, req.SubscribedReactors); err != nil {
		fail(c, err)
		return
	}

	c.Status(http.StatusCreated)
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription handles the deletion of a subscription.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, apperr.CodeValidation, "invalid request")
		return
	}

	if err := h.store.DeletePushSubscription(c.Request.Context(), req.Endpoint); err != nil {
		fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// rawQueryParam returns key's value. Push endpoints are URLs whose own query strings the
// generic parser would split, so everything after "key=" is taken and unescaped once.
func rawQueryParam(rawQuery, key string) (string, bool) {
	i := strings.Index(rawQuery, key+"=")
	if i < 0 || (i > 0 && rawQuery[i-1] != '&') {
		return "", false
	}
	raw := rawQuery[i+len(key)+1:]
	if v, err := url.QueryUnescape(raw); err == nil {
		return v, true
	}
	return raw, true
}

// GetSubscription handles the retrieval of a subscription.
func (h *Handler) GetSubscription(c *gin.Context) {
	endpoint, ok := rawQueryParam(c.Request.URL.RawQuery, "endpoint")
	if !ok || endpoint == "" {
		badRequest(c, apperr.CodeMissingField, "endpoint is required")
		return
	}

	subscription, err := h.store.GetPushSubscription(c.Request.Context(), endpoint)
	if err != nil {
		fail(c, err)
		return
	}

	reactorIDs := make([]int64, len(subscription.Reactors))
	for i, reactor := range subscription.Reactors {
		reactorIDs[i] = reactor.ID
	}

	c.JSON(http.StatusOK, gin.H{"subscribed_reactors": reactorIDs})
}
