package dataaccess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Jacobbrewer1/warden/pkg/dataaccess/monitoring"
	"github.com/Jacobbrewer1/warden/pkg/entities"
	"github.com/Jacobbrewer1/warden/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ticketDalName = "ticket_dal"

// ErrTicketNotFound is returned when no ticket exists for a channel.
var ErrTicketNotFound = errors.New("ticket not found")

type TicketDal interface {
	// SaveTicket upserts a ticket. Full overwrite, no partial merge. The
	// write is durable before the call returns.
	SaveTicket(ctx context.Context, ticket *entities.Ticket) error

	// GetTicket gets the ticket hosted by a channel. Returns
	// ErrTicketNotFound when no record exists.
	GetTicket(ctx context.Context, channelID string) (*entities.Ticket, error)

	// DeleteTicket removes the ticket hosted by a channel. It reports whether
	// a record was actually removed; deleting an absent record is not an
	// error. The caller that observes true holds the close lock.
	DeleteTicket(ctx context.Context, channelID string) (bool, error)

	// ListTickets returns every tracked ticket. Order is unspecified.
	ListTickets(ctx context.Context) ([]*entities.Ticket, error)
}

type ticketDalImpl struct {
	// l is the logger.
	l *slog.Logger

	// client is the database.
	client *mongo.Client
}

// NewTicketDal creates a new ticket data access layer.
func NewTicketDal() TicketDal {
	l := slog.Default().With(slog.String(logging.KeyDal, ticketDalName))

	if MongoDB == nil {
		l.Warn("MongoDB is nil, this can cause a panic. Proceeding...")
	}

	return &ticketDalImpl{
		l:      l,
		client: MongoDB,
	}
}

func (d *ticketDalImpl) collection() *mongo.Collection {
	return d.client.Database(mongoDatabase).Collection("tickets")
}

func (d *ticketDalImpl) SaveTicket(ctx context.Context, ticket *entities.Ticket) error {
	// Start the prometheus metrics.
	monitoring.MongoTotalRequests.WithLabelValues(ticketDalName, "save_ticket", mongoDatabase, "tickets").Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(ticketDalName, "save_ticket", mongoDatabase, "tickets"))
	defer t.ObserveDuration()

	opts := options.Replace().SetUpsert(true)
	_, err := d.collection().ReplaceOne(ctx, bson.M{"channel_id": ticket.ChannelID}, ticket, opts)
	if err != nil {
		monitoring.MongoTotalErrors.WithLabelValues(ticketDalName, "save_ticket", mongoDatabase, "tickets").Inc()
		return fmt.Errorf("error saving ticket: %w", err)
	}
	return nil
}

func (d *ticketDalImpl) GetTicket(ctx context.Context, channelID string) (*entities.Ticket, error) {
	// Start the prometheus metrics.
	monitoring.MongoTotalRequests.WithLabelValues(ticketDalName, "get_ticket", mongoDatabase, "tickets").Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(ticketDalName, "get_ticket", mongoDatabase, "tickets"))
	defer t.ObserveDuration()

	ticket := new(entities.Ticket)
	err := d.collection().FindOne(ctx, bson.M{"channel_id": channelID}).Decode(ticket)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTicketNotFound
		}
		monitoring.MongoTotalErrors.WithLabelValues(ticketDalName, "get_ticket", mongoDatabase, "tickets").Inc()
		return nil, fmt.Errorf("error getting ticket: %w", err)
	}

	return ticket, nil
}

func (d *ticketDalImpl) DeleteTicket(ctx context.Context, channelID string) (bool, error) {
	// Start the prometheus metrics.
	monitoring.MongoTotalRequests.WithLabelValues(ticketDalName, "delete_ticket", mongoDatabase, "tickets").Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(ticketDalName, "delete_ticket", mongoDatabase, "tickets"))
	defer t.ObserveDuration()

	res, err := d.collection().DeleteOne(ctx, bson.M{"channel_id": channelID})
	if err != nil {
		monitoring.MongoTotalErrors.WithLabelValues(ticketDalName, "delete_ticket", mongoDatabase, "tickets").Inc()
		return false, fmt.Errorf("error deleting ticket: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func (d *ticketDalImpl) ListTickets(ctx context.Context) ([]*entities.Ticket, error) {
	// Start the prometheus metrics.
	monitoring.MongoTotalRequests.WithLabelValues(ticketDalName, "list_tickets", mongoDatabase, "tickets").Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(ticketDalName, "list_tickets", mongoDatabase, "tickets"))
	defer t.ObserveDuration()

	cur, err := d.collection().Find(ctx, bson.M{})
	if err != nil {
		monitoring.MongoTotalErrors.WithLabelValues(ticketDalName, "list_tickets", mongoDatabase, "tickets").Inc()
		return nil, fmt.Errorf("error listing tickets: %w", err)
	}

	var tickets []*entities.Ticket
	if err := cur.All(ctx, &tickets); err != nil {
		monitoring.MongoTotalErrors.WithLabelValues(ticketDalName, "list_tickets", mongoDatabase, "tickets").Inc()
		return nil, fmt.Errorf("error decoding tickets: %w", err)
	}
	return tickets, nil
}
