package registry

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bobbin/internal/services"
)

// MongoConfig points at the collection holding transcript documents.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
	Field      string
	Timeout    time.Duration
}

// MongoRegistry projects the media field of every document.
type MongoRegistry struct {
	cfg MongoConfig

	mu     sync.Mutex
	client *mongo.Client
}

// NewMongoRegistry returns an unconnected registry.
func NewMongoRegistry(cfg MongoConfig) *MongoRegistry {
	if cfg.Field == "" {
		cfg.Field = "media"
	}
	return &MongoRegistry{cfg: cfg}
}

func (r *MongoRegistry) collection(ctx context.Context) (*mongo.Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(r.cfg.URI))
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "registry", "connect mongo", "", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			_ = client.Disconnect(ctx)
			return nil, services.Wrap(services.ErrTransient, "registry", "ping mongo", "", err)
		}
		r.client = client
	}
	return r.client.Database(r.cfg.Database).Collection(r.cfg.Collection), nil
}

// ListExistingMedia returns every non-empty string value of the media field.
func (r *MongoRegistry) ListExistingMedia(ctx context.Context) (map[string]struct{}, error) {
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}
	coll, err := r.collection(ctx)
	if err != nil {
		return nil, err
	}
	projection := bson.M{r.cfg.Field: 1, "_id": 0}
	cursor, err := coll.Find(ctx, bson.M{}, options.Find().SetProjection(projection))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "registry", "query mongo", r.cfg.Collection, err)
	}
	defer cursor.Close(ctx)

	var media []string
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			continue
		}
		if value, ok := doc[r.cfg.Field].(string); ok {
			media = append(media, value)
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, services.Wrap(services.ErrTransient, "registry", "iterate mongo", r.cfg.Collection, err)
	}
	return toSet(media), nil
}

// Close disconnects the client.
func (r *MongoRegistry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		return nil
	}
	err := r.client.Disconnect(ctx)
	r.client = nil
	return err
}
