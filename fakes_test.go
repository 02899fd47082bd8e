package passwordless

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// fakeVerifier verifies tokens found in its map.
type fakeVerifier struct {
	ids   map[string]string // token -> external user ID
	calls atomic.Int32

	// onVerify is called with the context of each call if set.
	onVerify func(ctx context.Context)
}

func (v *fakeVerifier) VerifyToken(ctx context.Context, token string) VerificationOutcome {
	v.calls.Add(1)
	if v.onVerify != nil {
		v.onVerify(ctx)
	}
	if id, ok := v.ids[token]; ok {
		return VerificationOutcome{Success: true, ExternalUserID: id}
	}
	return VerificationOutcome{}
}

// memUserStore is a UserStore enforcing unique linkage like the Mongo index does.
type memUserStore struct {
	mu      sync.Mutex
	users   []*User
	inserts int

	findErr   error
	insertErr error

	// beforeInsert is called (unlocked) before each insert if set.
	beforeInsert func()
}

func (s *memUserStore) FindByExternalUserID(ctx context.Context, externalUserID string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	for _, u := range s.users {
		if u.ExternalUserID == externalUserID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memUserStore) Insert(ctx context.Context, u *User) error {
	if s.beforeInsert != nil {
		s.beforeInsert()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	for _, saved := range s.users {
		if u.ExternalUserID != "" && saved.ExternalUserID == u.ExternalUserID {
			return fmt.Errorf("insert user: %w", ErrDuplicateLinkage)
		}
	}
	if u.ID.IsZero() {
		u.ID = bson.NewObjectID()
	}
	cp := *u
	s.users = append(s.users, &cp)
	s.inserts++
	return nil
}

func (s *memUserStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// memPendingStore is an in-memory PendingStore.
type memPendingStore struct {
	mu      sync.Mutex
	pending []*PendingRegistration
	deletes int

	createErr error
	findErr   error
	deleteErr error
}

func (s *memPendingStore) Create(ctx context.Context, p *PendingRegistration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	for _, saved := range s.pending {
		if saved.Token == p.Token {
			return fmt.Errorf("insert pending registration: %w", ErrDuplicateToken)
		}
	}
	if p.ID.IsZero() {
		p.ID = bson.NewObjectID()
	}
	cp := *p
	s.pending = append(s.pending, &cp)
	return nil
}

func (s *memPendingStore) FindByToken(ctx context.Context, token string) (*PendingRegistration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	for _, p := range s.pending {
		if p.Token == token {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memPendingStore) Delete(ctx context.Context, id bson.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	for i, p := range s.pending {
		if p.ID == id {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			s.deletes++
			return nil
		}
	}
	return fmt.Errorf("delete pending registration %s: not found", id.Hex())
}

func (s *memPendingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
