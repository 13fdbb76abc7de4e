package port

import (
	"context"
	"io"

	"github.com/garyjia/image-annotation/internal/domain/entity"
	"github.com/garyjia/image-annotation/internal/domain/event"
)

// EventPublisher forwards committed lifecycle events to an external sink
type EventPublisher interface {
	Publish(ctx context.Context, evt *event.Event) error
	Close() error
}

// ArchiveExporter renders Completed Archive entries into a downloadable document
type ArchiveExporter interface {
	// ContentType is the MIME type of the rendered document
	ContentType() string

	// Export writes the records to w
	Export(ctx context.Context, records []*entity.CompletedRecord, w io.Writer) error
}
