package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"support-router/logger"
	"support-router/models"
)

// GetCustomerByID returns the customer, or nil when none exists.
func (s *MongoStore) GetCustomerByID(ctx context.Context, psid string) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.Collection(customersCollection).FindOne(ctx, bson.M{"psid": psid}).Decode(&customer)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return &customer, nil
}

// CreateCustomer inserts a new record and returns it with timestamps set.
func (s *MongoStore) CreateCustomer(ctx context.Context, customer *models.Customer) (*models.Customer, error) {
	now := s.now()
	created := *customer
	created.CreatedAt = now
	created.UpdatedAt = now

	if _, err := s.db.Collection(customersCollection).InsertOne(ctx, created); err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}

	logger.FromContext(ctx).Info("New customer created", zap.String("psid", created.PSID))
	return &created, nil
}

// UpdateCustomer applies a partial update and returns the updated record,
// or nil when no record matched.
func (s *MongoStore) UpdateCustomer(ctx context.Context, psid string, update models.CustomerUpdate) (*models.Customer, error) {
	set := bson.M{"updated_at": s.now()}
	for field, value := range update.Fields() {
		set[field] = value
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var customer models.Customer
	err := s.db.Collection(customersCollection).
		FindOneAndUpdate(ctx, bson.M{"psid": psid}, bson.M{"$set": set}, opts).
		Decode(&customer)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("update customer: %w", err)
	}
	return &customer, nil
}

// PauseCustomer marks psid as handled by a human, creating the record
// when it does not exist yet.
func (s *MongoStore) PauseCustomer(ctx context.Context, psid, pageID string, at time.Time) (*models.Customer, error) {
	now := s.now()
	update := bson.M{
		"$set": bson.M{
			"ai_paused":           true,
			"last_human_reply_at": at,
			"updated_at":          now,
		},
		"$setOnInsert": bson.M{
			"psid":       psid,
			"page_id":    pageID,
			"created_at": now,
		},
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var customer models.Customer
	err := s.db.Collection(customersCollection).
		FindOneAndUpdate(ctx, bson.M{"psid": psid}, update, opts).
		Decode(&customer)
	if err != nil {
		return nil, fmt.Errorf("pause customer: %w", err)
	}
	return &customer, nil
}
