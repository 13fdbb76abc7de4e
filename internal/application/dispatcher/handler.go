package dispatcher

import (
	"context"

	"github.com/garyjia/image-annotation/internal/domain/event"
)

// Handler processes lifecycle events
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo names a registered handler
type HandlerInfo struct {
	Name      string
	EventType event.Type
	Handler   Handler
}

// wildcard marks handlers subscribed to every event type
const wildcard event.Type = "*"
