package notifications

import (
	"context"
	"fmt"

	"github.com/minhdang/storefront-backend/pkg/db/models"
	"github.com/minhdang/storefront-backend/pkg/enums"
	"github.com/minhdang/storefront-backend/pkg/logger"
)

// Dispatcher fans order lifecycle events out to whatever channels are
// configured. Dispatch happens after the owning transaction commits and a
// failure is logged, never propagated back into the order flow.
type Dispatcher interface {
	OrderCreated(ctx context.Context, order *models.Order)
	OrderStatusChanged(ctx context.Context, order *models.Order, from, to enums.OrderStatus)
}

// LogDispatcher writes each event to the structured log. It stands in
// until a real channel (mail, push) is wired behind the same interface.
type LogDispatcher struct {
	log *logger.Logger
}

// NewLogDispatcher builds a log-backed dispatcher.
func NewLogDispatcher(log *logger.Logger) (*LogDispatcher, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &LogDispatcher{log: log}, nil
}

func (d *LogDispatcher) OrderCreated(ctx context.Context, order *models.Order) {
	ctx = d.log.WithOrderCode(ctx, order.Code)
	ctx = d.log.WithFields(ctx, map[string]any{
		"order_id": order.ID,
		"total":    order.Total,
	})
	d.log.Info(ctx, "order created")
}

func (d *LogDispatcher) OrderStatusChanged(ctx context.Context, order *models.Order, from, to enums.OrderStatus) {
	ctx = d.log.WithOrderCode(ctx, order.Code)
	ctx = d.log.WithFields(ctx, map[string]any{
		"order_id": order.ID,
		"from":     from.String(),
		"to":       to.String(),
	})
	d.log.Info(ctx, "order status changed")
}
