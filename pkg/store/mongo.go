// Package store persists normalized pulses in MongoDB.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/otx-pulse-etl/pkg/pulse"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned by Get when no pulse has the given id.
var ErrNotFound = errors.New("pulse not found")

// Config holds the MongoDB connection settings.
type Config struct {
	// URI is the connection string (e.g. "mongodb://localhost:27017/").
	URI string

	// Database and Collection name the target collection.
	Database   string
	Collection string

	// ConnectTimeout bounds Connect, including the initial ping.
	ConnectTimeout time.Duration
}

// DefaultConfig returns the local development configuration.
func DefaultConfig() Config {
	return Config{
		URI:            "mongodb://localhost:27017/",
		Database:       "api_testing",
		Collection:     "otx_pulses_raw",
		ConnectTimeout: 10 * time.Second,
	}
}

// Mongo is a pulse collection backed by MongoDB.
type Mongo struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     zerolog.Logger
}

// Connect opens a client and verifies the server is reachable.
func Connect(ctx context.Context, cfg Config) (*Mongo, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo uri is required")
	}
	if cfg.Database == "" || cfg.Collection == "" {
		return nil, fmt.Errorf("database and collection names are required")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	logger := log.With().
		Str("component", "store").
		Str("database", cfg.Database).
		Str("collection", cfg.Collection).
		Logger()
	logger.Info().Msg("Connected to MongoDB")

	return &Mongo{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		logger:     logger,
	}, nil
}

// Upsert writes p keyed by its id, inserting it when absent and replacing
// its fields otherwise. inserted is true only for a new document.
func (m *Mongo) Upsert(ctx context.Context, p pulse.Pulse) (bool, error) {
	if !p.HasID() {
		return false, fmt.Errorf("upsert: pulse has no id")
	}

	result, err := m.collection.UpdateOne(ctx,
		bson.M{"_id": p.ID},
		bson.M{"$set": fields(p)},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("upsert pulse %s: %w", p.ID, err)
	}

	return result.UpsertedID != nil, nil
}

// fields is the $set document for p. _id is immutable and comes from the
// filter on insert.
func fields(p pulse.Pulse) bson.M {
	return bson.M{
		pulse.FieldName:        p.Name,
		pulse.FieldDescription: p.Description,
		pulse.FieldAuthorName:  p.AuthorName,
		pulse.FieldCreated:     p.Created,
		pulse.FieldModified:    p.Modified,
		pulse.FieldTags:        p.Tags,
		pulse.FieldReferences:  p.References,
	}
}

// Get loads a stored pulse by id.
func (m *Mongo) Get(ctx context.Context, id string) (pulse.Pulse, error) {
	var p pulse.Pulse
	err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return pulse.Pulse{}, ErrNotFound
	}
	if err != nil {
		return pulse.Pulse{}, fmt.Errorf("find pulse %s: %w", id, err)
	}
	return p, nil
}

// Count returns the number of stored pulses.
func (m *Mongo) Count(ctx context.Context) (int64, error) {
	n, err := m.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count pulses: %w", err)
	}
	return n, nil
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	if err := m.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("mongo disconnect: %w", err)
	}
	m.logger.Info().Msg("MongoDB connection closed")
	return nil
}
