package negotiation

import (
	"errors"
	"fmt"
	"strings"

	"purchase-order-service/internal/models"
)

var (
	ErrValidation             = errors.New("validation failed")
	ErrInvalidTransition      = errors.New("invalid transition")
	ErrInconsistentState      = errors.New("inconsistent state")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrNotFound               = errors.New("not found")
)

// Problem is one displayable reason a request was refused.
type Problem struct {
	ItemID      string `json:"item_id,omitempty"`
	ProductName string `json:"product_name,omitempty"`
	Reason      string `json:"reason"`
}

// ValidationError reports malformed input with per-item detail.
// errors.Is(err, ErrValidation) holds for every ValidationError.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		switch {
		case p.ItemID != "" && p.ProductName != "":
			parts = append(parts, fmt.Sprintf("item %s (%s): %s", p.ItemID, p.ProductName, p.Reason))
		case p.ItemID != "":
			parts = append(parts, fmt.Sprintf("item %s: %s", p.ItemID, p.Reason))
		default:
			parts = append(parts, p.Reason)
		}
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(reason string) error {
	return &ValidationError{Problems: []Problem{{Reason: reason}}}
}

func itemProblem(item *models.OrderItem, reason string) Problem {
	return Problem{ItemID: item.ID, ProductName: item.ProductName, Reason: reason}
}

func invalidItem(item *models.OrderItem, reason string) error {
	return &ValidationError{Problems: []Problem{itemProblem(item, reason)}}
}

func transitionError(action models.Action, from models.OrderStatus) error {
	return fmt.Errorf("%w: %s is not allowed from %s", ErrInvalidTransition, action, from)
}

func itemTransitionError(action models.Action, item *models.OrderItem) error {
	return fmt.Errorf("%w: %s is not allowed for item %s in status %s", ErrInvalidTransition, action, item.ID, item.Status)
}

func itemNotFound(orderID, itemID string) error {
	return fmt.Errorf("%w: item %s in order %s", ErrNotFound, itemID, orderID)
}
