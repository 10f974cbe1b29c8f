package negotiation

import "purchase-order-service/internal/models"

// Outstanding summarizes delivered or completed orders that are not paid.
type Outstanding struct {
	Orders int          `json:"orders"`
	Amount models.Money `json:"amount"`
}

// PipelineStage is the count and value of orders in one status.
type PipelineStage struct {
	Status models.OrderStatus `json:"status"`
	Orders int                `json:"orders"`
	Value  models.Money       `json:"value"`
}

// OutstandingPayments totals unpaid delivered and completed orders.
func OutstandingPayments(orders []models.Order) Outstanding {
	var out Outstanding
	for i := range orders {
		o := &orders[i]
		if o.PaidAt != nil {
			continue
		}
		if o.Status == models.OrderStatusDelivered || o.Status == models.OrderStatusCompleted {
			out.Orders++
			out.Amount += o.Total
		}
	}
	return out
}

// Pipeline groups orders by status in lifecycle order. Every status is
// present, including empty ones.
func Pipeline(orders []models.Order) []PipelineStage {
	idx := make(map[models.OrderStatus]int, len(models.OrderStatuses))
	stages := make([]PipelineStage, len(models.OrderStatuses))
	for i, s := range models.OrderStatuses {
		idx[s] = i
		stages[i].Status = s
	}
	for i := range orders {
		j, ok := idx[orders[i].Status]
		if !ok {
			continue
		}
		stages[j].Orders++
		stages[j].Value += orders[i].Total
	}
	return stages
}
