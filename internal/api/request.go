package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"purchase-order-service/internal/models"
	"purchase-order-service/internal/negotiation"
	"purchase-order-service/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	HeaderActorRole = "X-Actor-Role"
	HeaderActorID   = "X-Actor-ID"

	actorKey = "actor"
)

// requireActor reads the acting principal from the request headers. An
// unknown role is left for the engine to refuse.
func requireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderActorRole)))
		id := strings.TrimSpace(c.GetHeader(HeaderActorID))
		if role == "" || id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "unauthenticated",
				Message: fmt.Sprintf("%s and %s headers are required", HeaderActorRole, HeaderActorID),
			})
			return
		}
		c.Set(actorKey, models.Actor{Role: models.ActorRole(role), ID: id})
		c.Next()
	}
}

func actorOf(c *gin.Context) models.Actor {
	return c.MustGet(actorKey).(models.Actor)
}

// orderRef reads the order id and the optional If-Match version.
func orderRef(c *gin.Context) (service.OrderRef, bool) {
	ref := service.OrderRef{ID: c.Param("id")}
	v := strings.TrimSpace(c.GetHeader("If-Match"))
	if v == "" || v == "*" {
		return ref, true
	}
	v = strings.Trim(strings.TrimPrefix(v, "W/"), `"`)
	version, err := strconv.ParseInt(v, 10, 64)
	if err != nil || version < 1 {
		badRequest(c, "If-Match must carry an order version", nil)
		return ref, false
	}
	ref.ExpectedVersion = version
	return ref, true
}

func bind(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		badRequest(c, "invalid request body", err)
		return false
	}
	return true
}

// bindOptional accepts an empty body.
func bindOptional(c *gin.Context, v interface{}) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	return bind(c, v)
}

// TransitionResponse is returned by every state-changing call.
type TransitionResponse struct {
	Order          *models.Order      `json:"order"`
	Action         models.Action      `json:"action"`
	BeforeStatus   models.OrderStatus `json:"before_status"`
	AfterStatus    models.OrderStatus `json:"after_status"`
	ChangedItemIDs []string           `json:"changed_item_ids"`
	AmountChange   models.Money       `json:"amount_change"`
	Changed        bool               `json:"changed"`
}

func respond(c *gin.Context, status int, t *negotiation.Transition) {
	c.Header("ETag", fmt.Sprintf(`"%d"`, t.Order.Version))
	changed := t.ChangedItemIDs
	if changed == nil {
		changed = []string{}
	}
	c.JSON(status, TransitionResponse{
		Order:          t.Order,
		Action:         t.Action,
		BeforeStatus:   t.BeforeStatus,
		AfterStatus:    t.AfterStatus,
		ChangedItemIDs: changed,
		AmountChange:   t.AmountChange,
		Changed:        t.Changed,
	})
}

// BulkEntry is the outcome for one id of a bulk call.
type BulkEntry struct {
	ID        string             `json:"id"`
	Succeeded bool               `json:"succeeded"`
	Status    models.OrderStatus `json:"status,omitempty"`
	Error     string             `json:"error,omitempty"`
	Message   string             `json:"message,omitempty"`
}

type BulkResponse struct {
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Results   []BulkEntry `json:"results"`
}

func bulkResponse(results []service.BulkResult) BulkResponse {
	resp := BulkResponse{Results: make([]BulkEntry, 0, len(results))}
	resp.Succeeded, resp.Failed = service.CountResults(results)
	for _, r := range results {
		entry := BulkEntry{ID: r.ID, Succeeded: r.Succeeded()}
		if r.Err != nil {
			body, _ := errorBody(r.Err)
			entry.Error = body.Error
			entry.Message = body.Message
		} else if r.Transition != nil {
			entry.Status = r.Transition.AfterStatus
		}
		resp.Results = append(resp.Results, entry)
	}
	return resp
}
