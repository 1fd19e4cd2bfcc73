// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/marketcast/internal/forecast"
	"github.com/tomtom215/marketcast/internal/logging"
	"github.com/tomtom215/marketcast/internal/metrics"
)

var _ forecast.EventPublisher = (*Publisher)(nil)

// Publisher turns forecasting outcomes into domain events.
type Publisher struct {
	pub message.Publisher
	now forecast.Clock
}

// NewPublisher wraps pub. now may be nil.
func NewPublisher(pub message.Publisher, now forecast.Clock) *Publisher {
	if now == nil {
		now = time.Now
	}
	return &Publisher{pub: pub, now: now}
}

// RecommendationGenerated publishes a recommendation.generated event.
func (p *Publisher) RecommendationGenerated(ctx context.Context, rec *forecast.Recommendation) error {
	if rec == nil {
		return errors.New("nil recommendation")
	}
	id := uuid.NewString()
	return p.publish(ctx, TopicRecommendationGenerated, id, rec.VendorID, RecommendationGeneratedEvent{
		EventID:             id,
		VendorID:            rec.VendorID,
		RecommendationID:    rec.ID,
		ProductID:           rec.ProductID,
		VenueID:             rec.VenueID,
		MarketDate:          rec.MarketDate.UTC().Format(time.DateOnly),
		RecommendedQuantity: rec.RecommendedQuantity,
		ConfidenceScore:     rec.ConfidenceScore,
		ModelVersion:        rec.ModelVersion,
		MLUsed:              rec.Features.MLUsed,
		OccurredAt:          p.now().UTC(),
	})
}

// FeedbackRecorded publishes a feedback.recorded event.
func (p *Publisher) FeedbackRecorded(ctx context.Context, fb *forecast.Feedback) error {
	if fb == nil {
		return errors.New("nil feedback")
	}
	id := uuid.NewString()
	return p.publish(ctx, TopicFeedbackRecorded, id, fb.VendorID, FeedbackRecordedEvent{
		EventID:             id,
		VendorID:            fb.VendorID,
		FeedbackID:          fb.ID,
		RecommendationID:    fb.RecommendationID,
		RecommendedQuantity: fb.RecommendedQuantity,
		ActualQuantitySold:  fb.ActualQuantitySold,
		VariancePercentage:  fb.VariancePercentage,
		WasAccurate:         fb.WasAccurate,
		OccurredAt:          p.now().UTC(),
	})
}

// ModelRetrained publishes a model.retrained event.
func (p *Publisher) ModelRetrained(ctx context.Context, vendorID string, result *forecast.RetrainResult) error {
	if result == nil {
		return errors.New("nil retrain result")
	}
	id := uuid.NewString()
	return p.publish(ctx, TopicModelRetrained, id, vendorID, ModelRetrainedEvent{
		EventID:      id,
		VendorID:     vendorID,
		Replaced:     result.Replaced,
		Reason:       result.Reason,
		NewMAE:       result.NewMAE,
		OldMAE:       result.OldMAE,
		TrainSize:    result.TrainSize,
		TestSize:     result.TestSize,
		ModelVersion: result.ModelVersion,
		OccurredAt:   p.now().UTC(),
	})
}

func (p *Publisher) publish(ctx context.Context, topic, eventID, vendorID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		metrics.EventsPublished.WithLabelValues(topic, "error").Inc()
		return fmt.Errorf("serialize %s: %w", topic, err)
	}

	msg := message.NewMessage(eventID, data)
	msg.Metadata.Set(MetadataEventType, topic)
	msg.Metadata.Set(MetadataVendorID, vendorID)
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		msg.Metadata.Set(MetadataCorrelationID, id)
	}

	if err := p.pub.Publish(topic, msg); err != nil {
		metrics.EventsPublished.WithLabelValues(topic, "error").Inc()
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	metrics.EventsPublished.WithLabelValues(topic, "success").Inc()
	return nil
}
