package provider

import (
	"context"

	"github.com/mosajjal/whatthela/pkg/models"
)

// LogSource defines the interface for source-specific payload parsers.
// A source turns whatever envelope the hosting platform delivers into
// flat records ready for submission to Log Analytics.
type LogSource interface {
	// Name returns the source name (aws, stdin, ...)
	Name() string

	// ParseBatch extracts all log records from a raw platform event.
	ParseBatch(ctx context.Context, rawEvent interface{}) ([]models.CloudWatchRecord, error)
}
