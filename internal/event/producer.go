package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/marketplace/internal/domain"
	pkgkafka "github.com/utafrali/marketplace/pkg/kafka"
)

// Aggregate types.
const (
	AggregateAccount = "account"
	AggregateListing = "listing"
)

// Source identifies events emitted by this service.
const Source = "marketplace-api"

// Topics for marketplace domain events.
var (
	TopicAccountRegistered = pkgkafka.Topic(AggregateAccount, "registered")
	TopicAccountActivated  = pkgkafka.Topic(AggregateAccount, "activated")
	TopicAccountUpdated    = pkgkafka.Topic(AggregateAccount, "updated")
	TopicListingCreated    = pkgkafka.Topic(AggregateListing, "created")
	TopicListingUpdated    = pkgkafka.Topic(AggregateListing, "updated")
)

// AccountData is the payload of account events. Credentials and
// verification tokens are never included.
type AccountData struct {
	ID       string `json:"id"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	IsActive bool   `json:"is_active"`
}

// ListingData is the payload of listing events.
type ListingData struct {
	ID          string  `json:"id"`
	OwnerID     string  `json:"owner_id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	ImageCount  int     `json:"image_count"`
	OptionCount int     `json:"option_count"`
}

// Publisher sends a built event to a topic. *pkgkafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes marketplace domain events. A Producer built with a nil
// Publisher drops every event, which is how Kafka is switched off.
type Producer struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(publisher Publisher, logger *slog.Logger) *Producer {
	return &Producer{publisher: publisher, logger: logger}
}

// Enabled reports whether events leave the process.
func (p *Producer) Enabled() bool { return p.publisher != nil }

// PublishAccountRegistered publishes an account.registered event.
func (p *Producer) PublishAccountRegistered(ctx context.Context, a *domain.Account) error {
	return p.publish(ctx, TopicAccountRegistered, a.ID, AggregateAccount, accountData(a))
}

// PublishAccountActivated publishes an account.activated event.
func (p *Producer) PublishAccountActivated(ctx context.Context, accountID string) error {
	return p.publish(ctx, TopicAccountActivated, accountID, AggregateAccount, AccountData{ID: accountID, IsActive: true})
}

// PublishAccountUpdated publishes an account.updated event.
func (p *Producer) PublishAccountUpdated(ctx context.Context, a *domain.Account) error {
	return p.publish(ctx, TopicAccountUpdated, a.ID, AggregateAccount, accountData(a))
}

// PublishListingCreated publishes a listing.created event.
func (p *Producer) PublishListingCreated(ctx context.Context, l *domain.Listing) error {
	return p.publish(ctx, TopicListingCreated, l.ID, AggregateListing, listingData(l))
}

// PublishListingUpdated publishes a listing.updated event.
func (p *Producer) PublishListingUpdated(ctx context.Context, l *domain.Listing) error {
	return p.publish(ctx, TopicListingUpdated, l.ID, AggregateListing, listingData(l))
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	if p.publisher == nil {
		return nil
	}

	evt, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, Source, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if err := p.publisher.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "event published",
		slog.String("topic", topic),
		slog.String("event_id", evt.EventID),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}

func accountData(a *domain.Account) AccountData {
	return AccountData{ID: a.ID, Email: a.Email, Username: a.Username, IsActive: a.IsActive}
}

func listingData(l *domain.Listing) ListingData {
	images := len(l.OtherImages)
	if l.MainImage != "" {
		images++
	}
	return ListingData{
		ID:          l.ID,
		OwnerID:     l.OwnerID,
		Name:        l.Name,
		Price:       l.Price,
		Category:    l.Category,
		ImageCount:  images,
		OptionCount: len(l.Options),
	}
}
