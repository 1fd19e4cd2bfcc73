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

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/tomtom215/marketcast/internal/config"
	"github.com/tomtom215/marketcast/internal/logging"
)

// Transport names accepted in MessagingConfig.Transport.
const (
	TransportGoChannel = "gochannel"
	TransportNATS      = "nats"
)

// Bus holds the publisher and subscriber for the configured transport.
type Bus struct {
	transport  string
	publisher  message.Publisher
	subscriber message.Subscriber
	embedded   *EmbeddedServer
	logger     watermill.LoggerAdapter
}

// NewBus connects the transport selected by cfg. An empty transport means
// the in-process gochannel.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewBus(cfg config.MessagingConfig, logger zerolog.Logger) (*Bus, error) {
	logger = logger.With().Str("component", "event_bus").Logger()
	wmLogger := logging.NewWatermillAdapter(logger)

	switch cfg.Transport {
	case "", TransportGoChannel:
		pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, wmLogger)
		return &Bus{
			transport:  TransportGoChannel,
			publisher:  pubSub,
			subscriber: pubSub,
			logger:     wmLogger,
		}, nil
	case TransportNATS:
		return newNATSBus(cfg, logger, wmLogger)
	default:
		return nil, fmt.Errorf("unknown messaging transport %q", cfg.Transport)
	}
}

//nolint:gocritic // zerolog.Logger is designed to be passed by value
func newNATSBus(cfg config.MessagingConfig, logger zerolog.Logger, wmLogger watermill.LoggerAdapter) (*Bus, error) {
	b := &Bus{transport: TransportNATS, logger: wmLogger}
	url := cfg.NATSURL
	if cfg.EmbeddedServer {
		srv, err := NewEmbeddedServer("127.0.0.1", cfg.EmbeddedPort, logger)
		if err != nil {
			return nil, fmt.Errorf("start embedded NATS: %w", err)
		}
		b.embedded = srv
		url = srv.ClientURL()
		logger.Info().Str("url", url).Msg("Embedded NATS server started")
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOptions("publisher", wmLogger),
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, wmLogger)
	if err != nil {
		b.shutdownEmbedded()
		return nil, fmt.Errorf("create NATS publisher: %w", err)
	}
	b.publisher = pub

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              url,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: 1,
		AckWaitTimeout:   30 * time.Second,
		CloseTimeout:     10 * time.Second,
		NatsOptions:      natsOptions("subscriber", wmLogger),
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        wmNats.JetStreamConfig{Disabled: true},
	}, wmLogger)
	if err != nil {
		_ = pub.Close()
		b.shutdownEmbedded()
		return nil, fmt.Errorf("create NATS subscriber: %w", err)
	}
	b.subscriber = sub

	logger.Info().Str("url", url).Str("queue_group", cfg.QueueGroup).Msg("Connected to NATS")
	return b, nil
}

func natsOptions(role string, logger watermill.LoggerAdapter) []natsgo.Option {
	return []natsgo.Option{
		natsgo.Name("marketcast-" + role),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(10),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, watermill.LogFields{"role": role})
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"role": role,
				"url":  nc.ConnectedUrl(),
			})
		}),
	}
}

// Transport reports the active transport name.
func (b *Bus) Transport() string { return b.transport }

// Publisher returns the Watermill publisher.
func (b *Bus) Publisher() message.Publisher { return b.publisher }

// Subscriber returns the Watermill subscriber.
func (b *Bus) Subscriber() message.Subscriber { return b.subscriber }

// Close releases the publisher, the subscriber and the embedded server.
func (b *Bus) Close() error {
	var errs []error
	if b.publisher != nil {
		if err := b.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	// gochannel uses one value for both sides.
	if b.subscriber != nil && b.transport != TransportGoChannel {
		if err := b.subscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close subscriber: %w", err))
		}
	}
	b.shutdownEmbedded()
	return errors.Join(errs...)
}

func (b *Bus) shutdownEmbedded() {
	if b.embedded == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.embedded.Shutdown(ctx); err != nil {
		b.logger.Error("Embedded NATS shutdown", err, nil)
	}
	b.embedded = nil
}
