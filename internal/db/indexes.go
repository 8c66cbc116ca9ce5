package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the application relies on. Notably the
// partial unique index on payments.listing_id restricted to live statuses:
// it is what makes "at most one live payment per listing" hold under
// concurrent activation requests. Safe to call on every startup.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	_, err := database.Collection("payments").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "listing_id", Value: 1}},
		Options: options.Index().
			SetName("one_live_payment_per_listing").
			SetUnique(true).
			SetPartialFilterExpression(bson.M{
				"status": bson.M{"$in": []string{"pending", "proof_submitted"}},
			}),
	})
	if err != nil {
		return fmt.Errorf("failed to create live payment index: %w", err)
	}

	_, err = database.Collection("payments").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "expires_at", Value: 1}},
		Options: options.Index().
			SetName("payment_expiry_sweep"),
	})
	if err != nil {
		return fmt.Errorf("failed to create payment sweep index: %w", err)
	}

	_, err = database.Collection("listings").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "seller_id", Value: 1}},
		Options: options.Index().SetName("listings_by_seller"),
	})
	if err != nil {
		return fmt.Errorf("failed to create listing seller index: %w", err)
	}

	_, err = database.Collection("sales_teams").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "seller_id", Value: 1}},
		Options: options.Index().SetName("teams_by_seller"),
	})
	if err != nil {
		return fmt.Errorf("failed to create team seller index: %w", err)
	}

	_, err = database.Collection("users").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}},
		Options: options.Index().
			SetName("users_email_unique").
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"deleted": false}),
	})
	if err != nil {
		return fmt.Errorf("failed to create user email index: %w", err)
	}

	return nil
}
