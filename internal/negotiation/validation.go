package negotiation

import (
	"fmt"

	"purchase-order-service/internal/models"
)

// CheckAvailability runs the submission gate over every item against the
// catalog snapshots and returns one problem per failed check. Products
// missing from snapshots are reported as not found.
func CheckAvailability(items []models.OrderItem, snapshots map[string]models.ProductSnapshot) []Problem {
	var problems []Problem
	for i := range items {
		it := &items[i]
		snap, ok := snapshots[it.ProductID]
		if !ok {
			problems = append(problems, itemProblem(it, "product not found in catalog"))
			continue
		}
		if !snap.InStock {
			problems = append(problems, itemProblem(it, "product is out of stock"))
			continue
		}
		if snap.MinOrderQty > 0 && it.Quantity < snap.MinOrderQty {
			problems = append(problems, itemProblem(it,
				fmt.Sprintf("quantity %d is below the minimum order quantity of %d", it.Quantity, snap.MinOrderQty)))
		}
		if it.Quantity > snap.StockAvailable {
			problems = append(problems, itemProblem(it,
				fmt.Sprintf("quantity %d exceeds available stock of %d", it.Quantity, snap.StockAvailable)))
		}
	}
	return problems
}
