package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/thunder-dashboard/backend/internal/models"
)

// ErrReportNotFound is returned when phase 4 has not written a report yet.
var ErrReportNotFound = errors.New("report not found")

// MongoStore reads session reports written by the worker.
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{col: db.Collection("session_reports")}
}

// EnsureIndexes makes session_id unique so each session has one report.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "session_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongo index: %w", err)
	}
	return nil
}

func (s *MongoStore) GetReport(ctx context.Context, sessionID string) (*models.SessionReport, error) {
	var rep models.SessionReport
	err := s.col.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&rep)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w for session %s", ErrReportNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("mongo find report: %w", err)
	}
	return &rep, nil
}

// DeleteReport removes the report of a deleted session.
func (s *MongoStore) DeleteReport(ctx context.Context, sessionID string) error {
	_, err := s.col.DeleteOne(ctx, bson.M{"session_id": sessionID})
	return err
}
