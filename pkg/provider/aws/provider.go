package aws

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/mosajjal/whatthela/pkg/models"
	"github.com/mosajjal/whatthela/pkg/provider"
)

// Source implements the LogSource interface for AWS CloudWatch Logs
type Source struct{}

// NewSource creates a new AWS CloudWatch Logs source
func NewSource() provider.LogSource {
	return &Source{}
}

// Name returns the source name
func (s *Source) Name() string {
	return "aws"
}

// CloudWatchLogs represents AWS CloudWatch Logs event structure
type CloudWatchLogs struct {
	AWSLogs struct {
		Data string `json:"data"`
	} `json:"awslogs"`
	Records []struct {
		RecordID string `json:"recordId"`
		Data     string `json:"data"`
	} `json:"records"`
}

// CloudWatchLogsData represents the decoded CloudWatch Logs data
type CloudWatchLogsData struct {
	MessageType         string     `json:"messageType"`
	Owner               string     `json:"owner"`
	LogGroup            string     `json:"logGroup"`
	LogStream           string     `json:"logStream"`
	SubscriptionFilters []string   `json:"subscriptionFilters"`
	LogEvents           []LogEvent `json:"logEvents"`
}

// LogEvent represents a single log event
type LogEvent struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"` // milliseconds since epoch
	Message   string `json:"message"`
}

// ParseBatch extracts flat records from a CloudWatch Logs subscription
// event, handling both the direct Lambda delivery shape (awslogs.data)
// and the Kinesis processor shape (records[].data).
func (s *Source) ParseBatch(ctx context.Context, rawEvent interface{}) ([]models.CloudWatchRecord, error) {
	data, err := json.Marshal(rawEvent)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	var cwLogs CloudWatchLogs
	if err := json.Unmarshal(data, &cwLogs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal CloudWatch Logs: %w", err)
	}

	var records []models.CloudWatchRecord

	// Kinesis records each carry their own compressed payload
	if len(cwLogs.Records) > 0 {
		for _, record := range cwLogs.Records {
			decoded, err := decodeCloudWatchData(record.Data)
			if err != nil {
				continue
			}
			records = append(records, flattenLogData(decoded)...)
		}
		return records, nil
	}

	if cwLogs.AWSLogs.Data != "" {
		decoded, err := decodeCloudWatchData(cwLogs.AWSLogs.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode CloudWatch data: %w", err)
		}
		records = append(records, flattenLogData(decoded)...)
	}

	return records, nil
}

// flattenLogData turns one decoded CloudWatch payload into one record
// per log event. Payloads that don't look like CloudWatch log data are
// kept as a single record with the raw text as the message.
func flattenLogData(decoded []byte) []models.CloudWatchRecord {
	var cwData CloudWatchLogsData
	if err := json.Unmarshal(decoded, &cwData); err != nil || len(cwData.LogEvents) == 0 {
		return []models.CloudWatchRecord{{
			TimeGenerated: time.Now().UTC(),
			Message:       string(decoded),
		}}
	}

	records := make([]models.CloudWatchRecord, 0, len(cwData.LogEvents))
	for _, logEvent := range cwData.LogEvents {
		records = append(records, models.CloudWatchRecord{
			TimeGenerated: time.UnixMilli(logEvent.Timestamp).UTC(),
			LogGroup:      cwData.LogGroup,
			LogStream:     cwData.LogStream,
			EventID:       logEvent.ID,
			Message:       logEvent.Message,
		})
	}
	return records
}

func decodeCloudWatchData(data string) ([]byte, error) {
	// Decode base64
	base64Decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}

	// Decompress gzip
	gz, err := gzip.NewReader(bytes.NewReader(base64Decoded))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	decompressed, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress gzip: %w", err)
	}

	return decompressed, nil
}
