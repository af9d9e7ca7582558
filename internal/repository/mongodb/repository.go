package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	applicationsCollection = "applications"
	movementsCollection    = "movements"
)

// Repository owns the MongoDB connection shared by the application and movement stores.
type Repository struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewRepository connects to MongoDB and verifies the connection.
func NewRepository(ctx context.Context, uri string, dbName string) (*Repository, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &Repository{
		client: client,
		db:     client.Database(dbName),
	}, nil
}

// EnsureIndexes creates the indexes used by the movement and application queries.
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	_, err := r.db.Collection(movementsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "application_id", Value: 1}, {Key: "date", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "application_id", Value: 1}, {Key: "lot_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create movement indexes: %w", err)
	}

	_, err = r.db.Collection(applicationsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "estado", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create application indexes: %w", err)
	}
	return nil
}

// Applications returns the application store.
func (r *Repository) Applications() *ApplicationStore {
	return &ApplicationStore{coll: r.db.Collection(applicationsCollection)}
}

// Movements returns the daily movement store.
func (r *Repository) Movements() *MovementStore {
	return &MovementStore{coll: r.db.Collection(movementsCollection)}
}

// Close closes the MongoDB connection.
func (r *Repository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
