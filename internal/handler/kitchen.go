package handler

import (
	"context"
	"net/http"
	"time"

	"restopos/internal/apierror"
	"restopos/internal/events"
	"restopos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// keepAlive is how often an idle stream sends a ping so proxies keep it open.
var keepAlive = 25 * time.Second

// Subscriber is implemented by events.Notifier.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (*events.Subscription, error)
}

type KitchenHandler struct {
	orders service.OrderService
	events Subscriber
}

func NewKitchenHandler(orders service.OrderService, sub Subscriber) *KitchenHandler {
	return &KitchenHandler{orders: orders, events: sub}
}

// Queue godoc
// @Summary      Kitchen queue
// @Description  Orders that are open, confirmed, preparing or ready, oldest first.
// @Tags         kitchen
// @Produce      json
// @Security     BearerAuth
// @Param        tenant_id path string true "Tenant UUID"
// @Success      200  {array} dto.OrderResponse
// @Router       /v1/tenants/{tenant_id}/kitchen/queue [get]
func (h *KitchenHandler) Queue(c *gin.Context) {
	tenantID, ok := tenantParam(c)
	if !ok {
		return
	}
	orders, err := h.orders.KitchenQueue(c.Request.Context(), tenantID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// Stream godoc
// @Summary      Kitchen display stream
// @Description  Server-sent order_update events for the tenant. No replay: connect, then fetch the queue.
// @Tags         kitchen
// @Produce      text/event-stream
// @Security     BearerAuth
// @Param        tenant_id path string true "Tenant UUID"
// @Router       /v1/tenants/{tenant_id}/kitchen/stream [get]
func (h *KitchenHandler) Stream(c *gin.Context) {
	tenantID, ok := tenantParam(c)
	if !ok {
		return
	}
	h.stream(c, events.KitchenTopic(tenantID), events.EventOrderUpdate)
}

// PrinterStream godoc
// @Summary      Printer stream
// @Description  Server-sent print jobs for one printer class: kitchen, bar or front.
// @Tags         kitchen
// @Produce      text/event-stream
// @Security     BearerAuth
// @Param        tenant_id path string true "Tenant UUID"
// @Param        class     path string true "kitchen | bar | front"
// @Router       /v1/tenants/{tenant_id}/printers/{class}/stream [get]
func (h *KitchenHandler) PrinterStream(c *gin.Context) {
	tenantID, ok := tenantParam(c)
	if !ok {
		return
	}
	class := c.Param("class")
	if !events.ValidPrinterClass(class) {
		c.JSON(http.StatusNotFound, apierror.New("unknown printer class"))
		return
	}
	h.stream(c, events.PrinterTopic(tenantID, class), "print_job")
}

func (h *KitchenHandler) stream(c *gin.Context, topic, event string) {
	ctx := c.Request.Context()
	sub, err := h.events.Subscribe(ctx, topic)
	if err != nil {
		respondError(c, apierror.Retryable(err))
		return
	}
	defer sub.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	log.Debug().Str("topic", topic).Msg("stream: subscriber connected")
	defer log.Debug().Str("topic", topic).Msg("stream: subscriber disconnected")

	ping := time.NewTicker(keepAlive)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Messages():
			if !ok {
				return
			}
			c.SSEvent(event, string(msg))
		case <-ping.C:
			c.SSEvent("ping", "")
		}
		c.Writer.Flush()
	}
}
