package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/orchard/internal/domain/models"
)

// ApplicationStore persists applications in the "applications" collection.
type ApplicationStore struct {
	coll *mongo.Collection
}

// Create inserts a new application.
func (s *ApplicationStore) Create(ctx context.Context, app models.Application) error {
	if _, err := s.coll.InsertOne(ctx, toApplicationDocument(app)); err != nil {
		return fmt.Errorf("failed to insert application: %w", err)
	}
	return nil
}

// Update replaces the stored application.
func (s *ApplicationStore) Update(ctx context.Context, app models.Application) error {
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": app.ID}, toApplicationDocument(app))
	if err != nil {
		return fmt.Errorf("failed to replace application: %w", err)
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Get loads one application by id.
func (s *ApplicationStore) Get(ctx context.Context, id string) (models.Application, error) {
	var doc applicationDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Application{}, models.ErrNotFound
	}
	if err != nil {
		return models.Application{}, fmt.Errorf("failed to find application: %w", err)
	}
	return doc.toModel(), nil
}

// List returns applications newest first, filtered by estado when one is given.
func (s *ApplicationStore) List(ctx context.Context, estado models.Estado) ([]models.Application, error) {
	filter := bson.M{}
	if estado != "" {
		filter["estado"] = estado
	}

	cursor, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}

	var docs []applicationDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode applications: %w", err)
	}

	apps := make([]models.Application, 0, len(docs))
	for _, doc := range docs {
		apps = append(apps, doc.toModel())
	}
	return apps, nil
}
