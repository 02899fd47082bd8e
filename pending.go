package passwordless

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// PendingRegistration is a user profile awaiting its first successful login.
// Records are never updated: they are created on registration and deleted once
// promoted to a User.
type PendingRegistration struct {
	// ID of the record.
	ID bson.ObjectID `bson:"_id,omitempty"`

	// Token is the handle the verification service will report back as the
	// user ID. Unique among live records.
	Token string `bson:"token"`

	// Username requested for the user.
	Username string `bson:"username"`

	// Name is the display name of the user.
	Name string `bson:"name"`

	// Email as submitted.
	Email string `bson:"email"`

	// Created is the registration timestamp.
	Created time.Time `bson:"_createdAt"`
}

// PendingStore persists pending registrations.
type PendingStore interface {
	// Create saves p and sets its ID.
	// Returns an error wrapping ErrDuplicateToken if p.Token is taken.
	Create(ctx context.Context, p *PendingRegistration) error

	// FindByToken returns the registration with the given token, nil if there is none.
	FindByToken(ctx context.Context, token string) (*PendingRegistration, error)

	// Delete removes the registration with the given ID.
	Delete(ctx context.Context, id bson.ObjectID) error
}

// MongoPendingStore is a PendingStore backed by a MongoDB collection.
type MongoPendingStore struct {
	// c is the pending registrations collection.
	c *mongo.Collection
}

// NewMongoPendingStore creates a MongoPendingStore using the given collection.
func NewMongoPendingStore(c *mongo.Collection) *MongoPendingStore {
	return &MongoPendingStore{c: c}
}

// EnsureIndexes creates the indexes the store relies on.
// The token index is unique, the email index is for lookups only.
func (s *MongoPendingStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetName("token_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email"),
		},
	})
	if err != nil {
		return fmt.Errorf("create pending indexes: %w", err)
	}
	return nil
}

// Create implements PendingStore.Create.
func (s *MongoPendingStore) Create(ctx context.Context, p *PendingRegistration) error {
	if p.ID.IsZero() {
		p.ID = bson.NewObjectID()
	}
	if _, err := s.c.InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("insert pending registration: %w", ErrDuplicateToken)
		}
		return fmt.Errorf("insert pending registration: %w", err)
	}
	return nil
}

// FindByToken implements PendingStore.FindByToken.
func (s *MongoPendingStore) FindByToken(ctx context.Context, token string) (*PendingRegistration, error) {
	var p *PendingRegistration
	if err := s.c.FindOne(ctx, bson.M{"token": token}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find pending registration: %w", err)
	}
	return p, nil
}

// Delete implements PendingStore.Delete.
// Deleting a missing record is an error.
func (s *MongoPendingStore) Delete(ctx context.Context, id bson.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete pending registration: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("delete pending registration %s: not found", id.Hex())
	}
	return nil
}
