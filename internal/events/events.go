// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package events

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
)

// Topics published by the forecasting service.
const (
	TopicRecommendationGenerated = "recommendation.generated"
	TopicFeedbackRecorded        = "feedback.recorded"
	TopicModelRetrained          = "model.retrained"
)

// Message metadata keys.
const (
	MetadataVendorID      = "vendor_id"
	MetadataCorrelationID = "correlation_id"
	MetadataEventType     = "event_type"
)

// RecommendationGeneratedEvent is published after a recommendation is saved.
type RecommendationGeneratedEvent struct {
	EventID             string    `json:"event_id"`
	VendorID            string    `json:"vendor_id"`
	RecommendationID    string    `json:"recommendation_id"`
	ProductID           string    `json:"product_id"`
	VenueID             string    `json:"venue_id,omitempty"`
	MarketDate          string    `json:"market_date"`
	RecommendedQuantity int       `json:"recommended_quantity"`
	ConfidenceScore     float64   `json:"confidence_score"`
	ModelVersion        string    `json:"model_version"`
	MLUsed              bool      `json:"ml_used"`
	OccurredAt          time.Time `json:"occurred_at"`
}

// FeedbackRecordedEvent is published after feedback is stored.
type FeedbackRecordedEvent struct {
	EventID             string    `json:"event_id"`
	VendorID            string    `json:"vendor_id"`
	FeedbackID          string    `json:"feedback_id"`
	RecommendationID    string    `json:"recommendation_id"`
	RecommendedQuantity int       `json:"recommended_quantity"`
	ActualQuantitySold  int       `json:"actual_quantity_sold"`
	VariancePercentage  float64   `json:"variance_percentage"`
	WasAccurate         bool      `json:"was_accurate"`
	OccurredAt          time.Time `json:"occurred_at"`
}

// ModelRetrainedEvent is published after every retraining run that was not skipped.
type ModelRetrainedEvent struct {
	EventID      string    `json:"event_id"`
	VendorID     string    `json:"vendor_id"`
	Replaced     bool      `json:"replaced"`
	Reason       string    `json:"reason,omitempty"`
	NewMAE       float64   `json:"new_mae"`
	OldMAE       *float64  `json:"old_mae,omitempty"`
	TrainSize    int       `json:"train_size"`
	TestSize     int       `json:"test_size"`
	ModelVersion string    `json:"model_version,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// DecodeFeedbackRecorded parses a feedback.recorded message payload.
func DecodeFeedbackRecorded(msg *message.Message) (*FeedbackRecordedEvent, error) {
	var ev FeedbackRecordedEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return nil, fmt.Errorf("decode %s: %w", TopicFeedbackRecorded, err)
	}
	if ev.VendorID == "" {
		return nil, fmt.Errorf("decode %s: missing vendor_id", TopicFeedbackRecorded)
	}
	return &ev, nil
}
