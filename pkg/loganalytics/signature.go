package loganalytics

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// signingResource is the path the Data Collector API signs over. It is
// fixed regardless of the api-version query string on the request URL.
const signingResource = "/api/logs"

// buildSignature computes the SharedKey authorization value for one
// request: HMAC-SHA256 over the canonical string
//
//	POST\n{contentLength}\napplication/json\nx-ms-date:{date}\n/api/logs
//
// keyed with the base64-decoded workspace shared key, base64-encoded.
func buildSignature(workspaceID string, key []byte, contentLength int, date string) string {
	canonical := fmt.Sprintf("POST\n%d\napplication/json\nx-ms-date:%s\n%s", contentLength, date, signingResource)
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(canonical))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return fmt.Sprintf("SharedKey %s:%s", workspaceID, sig)
}
