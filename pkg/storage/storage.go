package storage

import (
	"context"
)

// Backend defines the interface for parking failed submissions. When a
// shipper cannot deliver a batch to Log Analytics, the serialized
// payload is stored for later replay instead of being dropped.
type Backend interface {
	// Store saves one serialized batch payload under its log type.
	Store(ctx context.Context, logType string, payload []byte) error

	// Close cleans up resources
	Close() error
}

// Config holds common storage configuration
type Config struct {
	Provider        string // s3
	URL             string
	AccessKey       string
	SecretKey       string
	Region          string
	Bucket          string
	PathPrefix      string
	CompressionType string // gzip, none
}
