package db

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"

	"vitrine/backend/internal/models"
)

// InsertOne inserts a document, generating its SixID if unset. On a duplicate
// _id (the randomly generated ID collided) it regenerates and retries; any
// other duplicate key error is returned to the caller, since it signals a
// domain-level uniqueness violation rather than an ID collision.
func InsertOne(ctx context.Context, coll *mongo.Collection, doc models.IBase) error {
	doc.GenIDIfEmpty()
	return WithRetries(func() error {
		_, err := coll.InsertOne(ctx, doc)
		if err != nil && isDuplicateIDError(err) {
			doc.GenID()
		}
		return err
	}, DefaultMaxRetries, isDuplicateIDError)
}

// isDuplicateIDError reports whether err is a duplicate key error on the _id
// index specifically.
func isDuplicateIDError(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 && strings.Contains(e.Message, "_id_") {
				return true
			}
		}
	}
	return false
}
