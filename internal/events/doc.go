// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

/*
Package events carries forecasting outcomes over a Watermill message bus.

Topics:

	recommendation.generated  RecommendationGeneratedEvent
	feedback.recorded         FeedbackRecordedEvent
	model.retrained           ModelRetrainedEvent

The transport is the in-process gochannel by default. With transport "nats"
the bus uses watermill-nats on core NATS subjects, connecting either to an
external server or to an EmbeddedServer started in-process. JetStream is not
used: events are notifications and every consumer can rebuild its state from
DuckDB.

Publisher implements forecast.EventPublisher and copies the request
correlation ID into message metadata. The AccuracyMonitor consumes
feedback.recorded, recomputes the vendor's trailing accuracy and updates the
marketcast_vendor_accuracy_rate gauge.

Router implements suture.Service:

	router := events.NewRouter(bus.Subscriber(), events.DefaultRouterConfig(), logger)
	router.AddConsumer("accuracy_monitor", events.TopicFeedbackRecorded, monitor.Handle)
	supervisor.Add(router)
*/
package events
