package sessions

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repository provides session persistence operations
type Repository interface {
	Create(ctx context.Context, s *Session) error
	GetByRefresh(ctx context.Context, refresh string) (*Session, error)
	DeleteByRefresh(ctx context.Context, refresh string) error
	DeleteByUID(ctx context.Context, uid string) error
}

// MongoRepository implements Repository using a Mongo collection
type MongoRepository struct {
	col *mongo.Collection
}

// NewMongoRepository also ensures a TTL index on expiresAt so Mongo reaps old sessions.
func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _ = col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "refreshToken", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
	})
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, s *Session) error {
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.ExpiresAt.IsZero() {
		s.ExpiresAt = now.Add(7 * 24 * time.Hour)
	}
	_, err := r.col.InsertOne(ctx, s)
	return err
}

func (r *MongoRepository) GetByRefresh(ctx context.Context, refresh string) (*Session, error) {
	var s Session
	if err := r.col.FindOne(ctx, bson.M{"refreshToken": refresh}).Decode(&s); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *MongoRepository) DeleteByRefresh(ctx context.Context, refresh string) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"refreshToken": refresh})
	return err
}

func (r *MongoRepository) DeleteByUID(ctx context.Context, uid string) error {
	_, err := r.col.DeleteMany(ctx, bson.M{"uid": uid})
	return err
}

// MemoryRepository keeps sessions in process; used when neither Redis nor Mongo is configured.
type MemoryRepository struct {
	mu    sync.Mutex
	store map[string]*Session
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{store: map[string]*Session{}}
}

func (r *MemoryRepository) Create(ctx context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.store[s.RefreshToken] = &cp
	return nil
}

func (r *MemoryRepository) GetByRefresh(ctx context.Context, refresh string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.store[refresh]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *MemoryRepository) DeleteByRefresh(ctx context.Context, refresh string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.store, refresh)
	return nil
}

func (r *MemoryRepository) DeleteByUID(ctx context.Context, uid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, s := range r.store {
		if s.UID == uid {
			delete(r.store, k)
		}
	}
	return nil
}
