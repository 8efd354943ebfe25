package services

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"support-router/logger"
)

const (
	customersCollection = "customers"
	spamLogsCollection  = "spam_logs"
	queryLogsCollection = "query_logs"
	brandsCollection    = "brands"
)

// InitMongoDB connects to MongoDB, retrying with exponential backoff
// until maxWait elapses.
func InitMongoDB(ctx context.Context, uri string, maxWait time.Duration) (*mongo.Client, error) {
	var client *mongo.Client

	connect := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		c, err := mongo.Connect(attemptCtx, options.Client().ApplyURI(uri))
		if err != nil {
			return err
		}
		if err := c.Ping(attemptCtx, nil); err != nil {
			_ = c.Disconnect(context.Background())
			return err
		}
		client = c
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxWait
	notify := func(err error, next time.Duration) {
		logger.Log.Warn("MongoDB not reachable, retrying", zap.Error(err), zap.Duration("next", next))
	}

	if err := backoff.RetryNotify(connect, backoff.WithContext(bo, ctx), notify); err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	logger.Log.Info("Connected to MongoDB")
	return client, nil
}

// MongoStore is the MongoDB persistence gateway.
type MongoStore struct {
	db  *mongo.Database
	now func() time.Time
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db, now: time.Now}
}

// EnsureIndexes creates the indexes the router's queries rely on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	if _, err := s.db.Collection(customersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "psid", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("customers index: %w", err)
	}

	if _, err := s.db.Collection(spamLogsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "psid", Value: 1}, {Key: "created_at", Value: -1}},
	}); err != nil {
		return fmt.Errorf("spam_logs index: %w", err)
	}

	if _, err := s.db.Collection(queryLogsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "psid", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("query_logs index: %w", err)
	}

	if _, err := s.db.Collection(brandsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "category", Value: 1}},
	}); err != nil {
		return fmt.Errorf("brands index: %w", err)
	}
	return nil
}
