// Package notify delivers deployment lifecycle CloudEvents to callback URLs
// asynchronously, with retry, per-host circuit breaking and HMAC signing.
package notify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// CloudEvent represents a CloudEvents 1.0 specification event
type CloudEvent struct {
	SpecVersion     string         `json:"specversion"`
	Type            string         `json:"type"`
	Source          string         `json:"source"`
	Subject         string         `json:"subject"`
	ID              string         `json:"id"`
	Time            time.Time      `json:"time"`
	DataContentType string         `json:"datacontenttype"`
	Data            map[string]any `json:"data"`
}

// NewEvent creates a CloudEvent with the spec version and content type set.
func NewEvent(eventType, source, subject, id string, data map[string]any) *CloudEvent {
	return &CloudEvent{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          source,
		Subject:         subject,
		ID:              id,
		Time:            time.Now().UTC(),
		DataContentType: "application/json",
		Data:            data,
	}
}

// Sign computes the X-Signature-256 value for an event body.
func Sign(event *CloudEvent, key string) (string, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event: %w", err)
	}
	return signature(body, key), nil
}

func signature(payload []byte, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
