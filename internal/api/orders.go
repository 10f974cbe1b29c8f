package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"purchase-order-service/internal/models"
	"purchase-order-service/internal/negotiation"
	"purchase-order-service/internal/service"
	"purchase-order-service/internal/store"

	"github.com/gin-gonic/gin"
)

type reasonRequest struct {
	Reason string `json:"reason"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

type shippingCostRequest struct {
	ShippingCost *models.Money `json:"shipping_cost" binding:"required"`
}

type noteRequest struct {
	Note string `json:"note"`
}

type reviewRequest struct {
	Summary string `json:"summary"`
}

type approveRequest struct {
	Decisions map[string]negotiation.SubstitutionDecision `json:"decisions"`
}

type markPaidRequest struct {
	PaidAt *time.Time `json:"paid_at,omitempty"`
}

func (r markPaidRequest) paidAt() time.Time {
	if r.PaidAt == nil {
		return time.Time{}
	}
	return *r.PaidAt
}

type decideRequest struct {
	ItemIDs  []string             `json:"item_ids"`
	Decision negotiation.Decision `json:"decision" binding:"required"`
	Reason   string               `json:"reason"`
}

type bulkRequest struct {
	OrderIDs []string `json:"order_ids" binding:"required,min=1"`
}

type bulkShipRequest struct {
	OrderIDs []string `json:"order_ids" binding:"required,min=1"`
	negotiation.Shipment
}

type bulkMarkPaidRequest struct {
	OrderIDs []string `json:"order_ids" binding:"required,min=1"`
	markPaidRequest
}

// createDraft handles draft order creation
func (h *Handler) createDraft(c *gin.Context) {
	var req service.CreateDraftRequest
	if !bind(c, &req) {
		return
	}

	t, err := h.orderService.CreateDraft(c.Request.Context(), actorOf(c), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusCreated, t)
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.orderService.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("ETag", `"`+strconv.FormatInt(order.Version, 10)+`"`)
	c.JSON(http.StatusOK, order)
}

// listOrders lists orders by buyer, supplier and status
func (h *Handler) listOrders(c *gin.Context) {
	f, ok := orderFilter(c)
	if !ok {
		return
	}
	orders, err := h.orderService.ListOrders(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "count": len(orders)})
}

func orderFilter(c *gin.Context) (store.OrderFilter, bool) {
	f := store.OrderFilter{
		BuyerID:    c.Query("buyer_id"),
		SupplierID: c.Query("supplier_id"),
	}
	for _, raw := range c.QueryArray("status") {
		for _, s := range strings.Split(raw, ",") {
			status := models.OrderStatus(strings.TrimSpace(s))
			if status == "" {
				continue
			}
			if !status.IsValid() {
				badRequest(c, "unknown status "+string(status), nil)
				return f, false
			}
			f.Statuses = append(f.Statuses, status)
		}
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			badRequest(c, "limit must be a non-negative integer", nil)
			return f, false
		}
		f.Limit = limit
	}
	return f, true
}

func (h *Handler) outstanding(c *gin.Context) {
	f, ok := orderFilter(c)
	if !ok {
		return
	}
	out, err := h.orderService.OutstandingPayments(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) pipeline(c *gin.Context) {
	f, ok := orderFilter(c)
	if !ok {
		return
	}
	stages, err := h.orderService.Pipeline(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stages": stages})
}

// transition runs one order operation and writes its result.
func (h *Handler) transition(c *gin.Context, run func(ref service.OrderRef, actor models.Actor) (*negotiation.Transition, error)) {
	ref, ok := orderRef(c)
	if !ok {
		return
	}
	t, err := run(ref, actorOf(c))
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, t)
}

func (h *Handler) addDraftItem(c *gin.Context) {
	var req service.LineRequest
	if !bind(c, &req) {
		return
	}
	h.transition(c, func(ref service.OrderRef, actor models.Actor) (*negotiation.Transition, error) {
		return h.orderService.AddDraftItem(c.Request.Context(), ref, actor, req)
	})
}

func (h *Handler) setDraftItemQuantity(c *gin.Context) {
	var req quantityRequest
	if !bind(c, &req) {
		return
	}
	h.transition(c, func(ref service.OrderRef, actor models.Actor) (*negotiation.Transition, error) {
		return h.orderService.SetDraftItemQuantity(c.Request.Context(), ref, actor, c.Param("itemId"), req.Quantity)
	})
}

func (h *Handler) removeDraftItem(c *gin.Context) {
	h.transition(c, func(ref service.OrderRef, actor models.Actor) (*negotiation.Transition, error) {
		return h.orderService.RemoveDraftItem(c.Request.Context(), ref, actor, c.Param("itemId"))
	})
}

func (h *Handler) setShippingCost(c *gin.Context) {
	var req shippingCostRequest
	if !bind(c, &req) {
		return
	}
	h.transition(c, func(ref service.OrderRef, actor models.Actor) (*negotiation.Transition, error) {
		return h.orderService.SetShippingCost(c.Request.Context(), ref, actor, *req.ShippingCost)
	})
}

func (h *Handler) submit(c *gin.Context) {
	h.transition(c, func(ref service.OrderRef, actor models.Actor) (*negotiation.Transition, error) {
		return h.orderService.Submit(c.Request.Context(), ref, actor)
	})
}

func (h *Handler) acceptItem(c *gin.Context) {
	h.transition(c, func(ref service.OrderRef, actor models.Actor) (*negotiation.Transition, error) {
		return h.orderService.AcceptItem(c.Request.Context(), ref, actor, c.Param("itemId"))
	})
}

func (h *Handler) rejectItem(c *gin.Context) {
	var req reasonRequest
	if !bindOptional(c, &req) {
		return
	}
	h.transition(c, func(ref service.OrderRef, actor models.Actor) (*negotiation.Transition, error) {
		return h.orderService.RejectItem(c.Request.Context(), ref, actor, c.Param("itemId"), req.Reason)
	})
}

func (h *Handler) substituteItem(c *gin.Context) {
	var req service.SubstituteRequest
	if !bind(c, &req) {
		return
	}
	h.transition(c, func(ref service.OrderRef, actor models.Actor) (*negotiation.Transition, error) {
		return h.orderService.SubstituteItem(c.Request.Context(), ref, actor, c.Param("itemId"), req)
	})
}

func (h *Handler) adjustItem(c *gin.Context) {
	var req negotiation.Adjustment
	if !bind(c, &req) {
		return
	}
	h.transition(c, func(ref service.OrderRef, actor models.Actor) (*negotiation.Transition, error) {
		return h.orderService.AdjustItem(c.Request.Context(), ref, actor, c.Param("itemId"), req)
	})
}

func (h *Handler) addItemNote(c *gin.Context) {
	var req noteRequest
	if !bind(c, &req) {
		return
	}
	h.transition(c, func(ref service.OrderRef, actor models.Actor) (*negotiation.Transition, error) {
		return h.orderService.AddItemNote(c.Request.Context(), ref, actor, c.Param("itemId"), req.Note)
	})
}

func (h *Handler) acceptSubstitution(c *gin.Context) {
	h.transition(c, func(ref service.OrderRef, actor models.Actor) (*negotiation.Transition, error) {
		return h.orderService.AcceptSubstitution(c.Request.Context(), ref, actor, c.Param("itemId"))
	})
}

func (h *Handler) rejectSubstitution(c *gin.Context) {
	var req reasonRequest
	if !bindOptional(c, &req) {
		return
	}
	h.transition(c, func(ref service.OrderRef, actor models.Actor) (*negotiation.Transition, error) {
		return h.orderService.RejectSubstitution(c.Request.Context(), ref, actor, c.Param("itemId"), req.Reason)
	})
}

func (h *Handler) confirm(c *gin.Context) {
	h.transition(c, func(ref service.OrderRef, actor models.Actor) (*negotiation.Transition, error) {
		return h.orderService.Confirm(c.Request.Context(), ref, actor)
	})
}

func (h *Handler) reject(c *gin.Context) {
	var req reasonRequest
	if !bindOptional(c, &req) {
		return
	}
	h.transition(c, func(ref service.OrderRef, actor models.Actor) (*negotiation.Transition, error) {
		return h.orderService.Reject(c.Request.Context(), ref, actor, req.Reason)
	})
}

func (h *Handler) sendForReview(c *gin.Context) {
	var req reviewRequest
	if !bindOptional(c, &req) {
		return
	}
	h.transition(c, func(ref service.OrderRef, actor models.Actor) (*negotiation.Transition, error) {
		return h.orderService.SendForReview(c.Request.Context(), ref, actor, req.Summary)
	})
}

func (h *Handler) approveChanges(c *gin.Context) {
	var req approveRequest
	if !bindOptional(c, &req) {
		return
	}
	h.transition(c, func(ref service.OrderRef, actor models.Actor) (*negotiation.Transition, error) {
		return h.orderService.ApproveChanges(c.Request.Context(), ref, actor, req.Decisions)
	})
}

func (h *Handler) rejectChanges(c *gin.Context) {
	var req reasonRequest
	if !bindOptional(c, &req) {
		return
	}
	h.transition(c, func(ref service.OrderRef, actor models.Actor) (*negotiation.Transition, error) {
		return h.orderService.RejectChanges(c.Request.Context(), ref, actor, req.Reason)
	})
}

func (h *Handler) startProcessing(c *gin.Context) {
	h.transition(c, func(ref service.OrderRef, actor models.Actor) (*negotiation.Transition, error) {
		return h.orderService.StartProcessing(c.Request.Context(), ref, actor)
	})
}

func (h *Handler) ship(c *gin.Context) {
	var req negotiation.Shipment
	if !bindOptional(c, &req) {
		return
	}
	h.transition(c, func(ref service.OrderRef, actor models.Actor) (*negotiation.Transition, error) {
		return h.orderService.Ship(c.Request.Context(), ref, actor, req)
	})
}

func (h *Handler) confirmDelivery(c *gin.Context) {
	h.transition(c, func(ref service.OrderRef, actor models.Actor) (*negotiation.Transition, error) {
		return h.orderService.ConfirmDelivery(c.Request.Context(), ref, actor)
	})
}

func (h *Handler) complete(c *gin.Context) {
	h.transition(c, func(ref service.OrderRef, actor models.Actor) (*negotiation.Transition, error) {
		return h.orderService.Complete(c.Request.Context(), ref, actor)
	})
}

func (h *Handler) markPaid(c *gin.Context) {
	var req markPaidRequest
	if !bindOptional(c, &req) {
		return
	}
	h.transition(c, func(ref service.OrderRef, actor models.Actor) (*negotiation.Transition, error) {
		return h.orderService.MarkPaid(c.Request.Context(), ref, actor, req.paidAt())
	})
}

func (h *Handler) cancel(c *gin.Context) {
	var req reasonRequest
	if !bindOptional(c, &req) {
		return
	}
	h.transition(c, func(ref service.OrderRef, actor models.Actor) (*negotiation.Transition, error) {
		return h.orderService.Cancel(c.Request.Context(), ref, actor, req.Reason)
	})
}

func (h *Handler) decideSubstitutions(c *gin.Context) {
	var req decideRequest
	if !bind(c, &req) {
		return
	}
	ref, ok := orderRef(c)
	if !ok {
		return
	}
	results, err := h.orderService.DecideSubstitutions(c.Request.Context(), ref, actorOf(c), req.ItemIDs,
		negotiation.SubstitutionDecision{Decision: req.Decision, Reason: req.Reason})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bulkResponse(results))
}

func (h *Handler) bulkConfirm(c *gin.Context) {
	var req bulkRequest
	if !bind(c, &req) {
		return
	}
	results := h.orderService.BulkConfirm(c.Request.Context(), actorOf(c), req.OrderIDs)
	c.JSON(http.StatusOK, bulkResponse(results))
}

func (h *Handler) bulkShip(c *gin.Context) {
	var req bulkShipRequest
	if !bind(c, &req) {
		return
	}
	results := h.orderService.BulkShip(c.Request.Context(), actorOf(c), req.OrderIDs, req.Shipment)
	c.JSON(http.StatusOK, bulkResponse(results))
}

func (h *Handler) bulkMarkPaid(c *gin.Context) {
	var req bulkMarkPaidRequest
	if !bind(c, &req) {
		return
	}
	results := h.orderService.BulkMarkPaid(c.Request.Context(), actorOf(c), req.OrderIDs, req.paidAt())
	c.JSON(http.StatusOK, bulkResponse(results))
}
