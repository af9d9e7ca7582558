package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/orchard/internal/domain/models"
)

// MovementStore persists daily movements in the "movements" collection.
type MovementStore struct {
	coll *mongo.Collection
}

// Append inserts a movement.
func (s *MovementStore) Append(ctx context.Context, mv models.DailyMovement) error {
	if _, err := s.coll.InsertOne(ctx, mv); err != nil {
		return fmt.Errorf("failed to insert movement: %w", err)
	}
	return nil
}

// List returns the movements of an application ordered by date, then creation time.
func (s *MovementStore) List(ctx context.Context, applicationID, lotID string) ([]models.DailyMovement, error) {
	filter := bson.M{"application_id": applicationID}
	if lotID != "" {
		filter["lot_id"] = lotID
	}

	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "created_at", Value: 1}})
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}

	mvs := []models.DailyMovement{}
	if err := cursor.All(ctx, &mvs); err != nil {
		return nil, fmt.Errorf("failed to decode movements: %w", err)
	}
	return mvs, nil
}

// Delete removes one movement of the given application.
func (s *MovementStore) Delete(ctx context.Context, applicationID, movementID string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": movementID, "application_id": applicationID})
	if err != nil {
		return fmt.Errorf("failed to delete movement: %w", err)
	}
	if res.DeletedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}
