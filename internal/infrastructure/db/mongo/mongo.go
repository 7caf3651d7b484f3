package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultTimeout = 10 * time.Second

const (
	collectionUsers         = "users"
	collectionSchools       = "schools"
	collectionBillingEvents = "billing_events"
)

// Config captures the minimal settings required to establish a MongoDB connection.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Connect establishes a MongoDB client, verifies connectivity with a ping, and
// returns both the client and the selected database. A default timeout is
// applied when none is provided.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(cfg.Database)
	return client, db, nil
}

// EnsureIndexes creates the unique and lookup indexes the repositories rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	plan := map[string][]mongo.IndexModel{
		collectionUsers: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "school_id", Value: 1}}},
			{Keys: bson.D{{Key: "streak", Value: 1}, {Key: "last_active_on", Value: 1}}},
		},
		collectionSchools: {
			{Keys: bson.D{{Key: "stripe_customer_id", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		},
		collectionBillingEvents: {
			{Keys: bson.D{{Key: "provider", Value: 1}, {Key: "event_id", Value: 1}}},
			{Keys: bson.D{{Key: "outcome", Value: 1}, {Key: "received_at", Value: -1}}},
		},
	}

	for coll, indexes := range plan {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, indexes); err != nil {
			return fmt.Errorf("mongo indexes %s: %w", coll, err)
		}
	}
	return nil
}

// Pinger adapts the database handle to the readiness probe.
type Pinger struct {
	db *mongo.Database
}

func NewPinger(db *mongo.Database) *Pinger { return &Pinger{db: db} }

func (p *Pinger) Name() string { return "mongodb" }

func (p *Pinger) Ping(ctx context.Context) error {
	return p.db.RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err()
}
