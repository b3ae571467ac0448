package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/evotags/evotags/internal/domain"
	pkgkafka "github.com/evotags/evotags/pkg/kafka"
	"github.com/evotags/evotags/pkg/logger"
)

// Kafka topic constants for EVO Tags domain events.
const (
	TopicReviewSubmitted   = "evotags.review.submitted"
	TopicAccountRegistered = "evotags.account.registered"
)

// Aggregate type constants.
const (
	AggregateTypeReview  = "review"
	AggregateTypeAccount = "account"
)

// SourceEvoTags identifies events published by this service.
const SourceEvoTags = "evotags"

// ReviewSubmittedData is the payload for a review.submitted event. It never
// names the author.
type ReviewSubmittedData struct {
	ReviewID string `json:"review_id"`
	TargetID string `json:"target_id"`
	Updated  bool   `json:"updated"`
}

// AccountRegisteredData is the payload for an account.registered event.
type AccountRegisteredData struct {
	AccountID string `json:"account_id"`
	FirstName string `json:"first_name"`
	Created   bool   `json:"created"`
}

// Producer publishes domain events to Kafka. A Producer built with a nil
// kafka producer drops events, which is how KAFKA_ENABLED=false runs.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// Enabled reports whether events reach Kafka.
func (p *Producer) Enabled() bool {
	return p != nil && p.kafka != nil
}

// PublishReviewSubmitted publishes a review.submitted event.
func (p *Producer) PublishReviewSubmitted(ctx context.Context, targetID string, result *domain.SubmitResult) error {
	if !p.Enabled() {
		return nil
	}
	data := ReviewSubmittedData{
		ReviewID: result.ReviewID,
		TargetID: targetID,
		Updated:  result.Updated,
	}
	return p.publish(ctx, TopicReviewSubmitted, result.ReviewID, AggregateTypeReview, data)
}

// PublishAccountRegistered publishes an account.registered event.
func (p *Producer) PublishAccountRegistered(ctx context.Context, account *domain.Account, created bool) error {
	if !p.Enabled() {
		return nil
	}
	data := AccountRegisteredData{
		AccountID: account.ID,
		FirstName: account.FirstName,
		Created:   created,
	}
	return p.publish(ctx, TopicAccountRegistered, account.ID, AggregateTypeAccount, data)
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	agg := pkgkafka.Aggregate{Type: aggregateType, ID: aggregateID}
	event, err := pkgkafka.NewEvent(SourceEvoTags, topic, agg, data,
		pkgkafka.WithCorrelationID(logger.CorrelationIDFromContext(ctx)))
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)

	return nil
}
