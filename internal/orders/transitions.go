package orders

import "github.com/minhdang/storefront-backend/pkg/enums"

// transitions is the complete edge set of the order lifecycle. An edge
// absent here does not exist; there is no way around the table.
var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:         {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
	enums.OrderStatusConfirmed:       {enums.OrderStatusProcessing, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing:      {enums.OrderStatusShipping, enums.OrderStatusCancelled},
	enums.OrderStatusShipping:        {enums.OrderStatusDelivered},
	enums.OrderStatusDelivered:       {enums.OrderStatusCompleted, enums.OrderStatusReturnRequested},
	enums.OrderStatusCompleted:       {enums.OrderStatusReturnRequested},
	enums.OrderStatusReturnRequested: {enums.OrderStatusReturned},
}

// CanTransition reports whether the lifecycle allows moving an order from
// one status to another.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
