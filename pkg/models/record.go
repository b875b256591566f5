package models

import "time"

// CloudWatchRecord is the flat record shape a CloudWatch Logs event is
// forwarded as. Every field is one of the scalar types the Data
// Collector API ingests, so records pass submitter validation as-is.
type CloudWatchRecord struct {
	TimeGenerated time.Time `json:"TimeGenerated"`
	LogGroup      string    `json:"LogGroup"`
	LogStream     string    `json:"LogStream"`
	EventID       string    `json:"EventId"`
	Message       string    `json:"Message"`
}

// RawRecord is a dynamic record decoded from arbitrary JSON input.
// json.Unmarshal produces string, bool and float64 values for scalar
// fields, which is exactly the set the submitter accepts; nested
// objects and arrays fail validation rather than being flattened.
type RawRecord = map[string]any
