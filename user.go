package passwordless

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// UserTypeUser is the default User.Type.
const UserTypeUser = "user"

// linkageIndexName is the name of the unique index on User.ExternalUserID.
const linkageIndexName = "externalUserId_unique"

// Email is an email address of a user.
type Email struct {
	// Address as submitted on registration.
	Address string `bson:"address"`

	// Verified tells if the address is known to belong to the user.
	Verified bool `bson:"verified"`
}

// User represents an application account.
type User struct {
	// ID of the user.
	ID bson.ObjectID `bson:"_id,omitempty"`

	// Type of the account, UserTypeUser for humans.
	Type string `bson:"type"`

	// Username is the login name.
	Username string `bson:"username,omitempty"`

	// Name is the display name.
	Name string `bson:"name,omitempty"`

	// Emails of the user, at most one for provisioned users.
	Emails []Email `bson:"emails,omitempty"`

	// Services holds the credentials of the user, keyed by service name.
	Services map[string]any `bson:"services"`

	// ExternalUserID links the user to the verification service identity.
	// Set once when the user is provisioned, unique across users.
	ExternalUserID string `bson:"externalUserId,omitempty"`

	// Active tells if the user may log in.
	Active bool `bson:"active"`

	// User creation timestamp.
	Created time.Time `bson:"createdAt"`
}

// UserStore persists users. Only the operations this login method needs.
type UserStore interface {
	// FindByExternalUserID returns the user linked to the given external
	// identity, nil if there is none.
	FindByExternalUserID(ctx context.Context, externalUserID string) (*User, error)

	// Insert saves u and sets its ID. Returns an error wrapping
	// ErrDuplicateLinkage if u.ExternalUserID is already linked.
	Insert(ctx context.Context, u *User) error
}

// MongoUserStore is a UserStore backed by a MongoDB collection.
type MongoUserStore struct {
	// c is the users collection.
	c *mongo.Collection
}

// NewMongoUserStore creates a MongoUserStore using the given collection.
func NewMongoUserStore(c *mongo.Collection) *MongoUserStore {
	return &MongoUserStore{c: c}
}

// EnsureIndexes creates the unique linkage index.
// It is sparse so users of other login methods (without linkage) may coexist.
func (s *MongoUserStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "externalUserId", Value: 1}},
		Options: options.Index().SetName(linkageIndexName).SetUnique(true).SetSparse(true),
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

// FindByExternalUserID implements UserStore.FindByExternalUserID.
func (s *MongoUserStore) FindByExternalUserID(ctx context.Context, externalUserID string) (*User, error) {
	var u *User
	if err := s.c.FindOne(ctx, bson.M{"externalUserId": externalUserID}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

// Insert implements UserStore.Insert.
// Conflicts on other unique indexes of the collection are returned as is.
func (s *MongoUserStore) Insert(ctx context.Context, u *User) error {
	if u.ID.IsZero() {
		u.ID = bson.NewObjectID()
	}
	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if linkageConflict(err) {
			return fmt.Errorf("insert user: %w", ErrDuplicateLinkage)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// linkageConflict tells if err is a duplicate key error on the linkage index.
func linkageConflict(err error) bool {
	var we mongo.WriteException
	if !errors.As(err, &we) {
		return false
	}
	for _, e := range we.WriteErrors {
		if e.Code == 11000 && strings.Contains(e.Message, linkageIndexName) {
			return true
		}
	}
	return false
}
