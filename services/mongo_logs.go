package services

import (
	"context"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"support-router/models"
)

// AppendSpamLog stores a spam entry, assigning its id and timestamp.
func (s *MongoStore) AppendSpamLog(ctx context.Context, entry *models.SpamLog) (*models.SpamLog, error) {
	stored := *entry
	stored.ID = uuid.NewString()
	stored.CreatedAt = s.now()

	if _, err := s.db.Collection(spamLogsCollection).InsertOne(ctx, stored); err != nil {
		return nil, fmt.Errorf("append spam log: %w", err)
	}
	return &stored, nil
}

// AppendQueryLog stores a query classification entry.
func (s *MongoStore) AppendQueryLog(ctx context.Context, entry *models.QueryLog) (*models.QueryLog, error) {
	stored := *entry
	stored.ID = uuid.NewString()
	stored.CreatedAt = s.now()

	if _, err := s.db.Collection(queryLogsCollection).InsertOne(ctx, stored); err != nil {
		return nil, fmt.Errorf("append query log: %w", err)
	}
	return &stored, nil
}

// RecentSpamLogs returns up to limit entries for psid, newest first.
func (s *MongoStore) RecentSpamLogs(ctx context.Context, psid string, limit int) ([]models.SpamLog, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.db.Collection(spamLogsCollection).Find(ctx, bson.M{"psid": psid}, opts)
	if err != nil {
		return nil, fmt.Errorf("recent spam logs: %w", err)
	}
	defer cursor.Close(ctx)

	logs := make([]models.SpamLog, 0, limit)
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, fmt.Errorf("decode spam logs: %w", err)
	}
	return logs, nil
}

// BrandsByCategory returns brand names whose category contains category,
// case-insensitively.
func (s *MongoStore) BrandsByCategory(ctx context.Context, category string) ([]string, error) {
	filter := bson.M{"category": primitive.Regex{Pattern: regexp.QuoteMeta(category), Options: "i"}}

	cursor, err := s.db.Collection(brandsCollection).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("brands by category: %w", err)
	}
	defer cursor.Close(ctx)

	var brands []models.Brand
	if err := cursor.All(ctx, &brands); err != nil {
		return nil, fmt.Errorf("decode brands: %w", err)
	}

	names := make([]string, 0, len(brands))
	for _, b := range brands {
		names = append(names, b.Name)
	}
	return names, nil
}
