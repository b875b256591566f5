package storage

import (
	"testing"
)

func TestConfig(t *testing.T) {
	cfg := Config{
		Provider:        "s3",
		URL:             "https://bucket.s3.us-east-1.amazonaws.com/failed/",
		Region:          "us-east-1",
		PathPrefix:      "failed/",
		CompressionType: "gzip",
	}

	if cfg.Provider != "s3" {
		t.Errorf("Expected provider to be 's3', got '%s'", cfg.Provider)
	}
	if cfg.CompressionType != "gzip" {
		t.Errorf("Expected compression type to be 'gzip', got '%s'", cfg.CompressionType)
	}
	if cfg.Region != "us-east-1" {
		t.Errorf("Expected region to be 'us-east-1', got '%s'", cfg.Region)
	}
}
