package auth

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Credential is the authentication record of an identity. It is distinct from
// the profile documents and is never removed by profile deletion.
type Credential struct {
	UID               string    `bson:"_id" json:"uid"`
	Email             string    `bson:"email" json:"email"`
	PasswordHash      string    `bson:"passwordHash" json:"-"`
	DisplayName       string    `bson:"displayName" json:"displayName"`
	CreatedAt         time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time `bson:"updatedAt" json:"updatedAt"`
	PasswordChangedAt time.Time `bson:"passwordChangedAt" json:"passwordChangedAt"`
}

// Repository defines persistence operations for credentials. Lookups return
// (nil, nil) when nothing matches.
type Repository interface {
	// Create returns ErrEmailInUse when the email is taken.
	Create(ctx context.Context, c *Credential) error
	GetByEmail(ctx context.Context, email string) (*Credential, error)
	GetByUID(ctx context.Context, uid string) (*Credential, error)
	UpdatePassword(ctx context.Context, uid, hash string, at time.Time) error
	// UIDs lists every credential id in ascending order.
	UIDs(ctx context.Context) ([]string, error)
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

// MongoRepository implements Repository using MongoDB
type MongoRepository struct {
	col *mongo.Collection
}

// NewMongoRepository creates a repository for the given collection and ensures
// the unique email index.
func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _ = col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, c *Credential) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	c.Email = normalizeEmail(c.Email)
	if _, err := r.col.InsertOne(ctx, c); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEmailInUse
		}
		return err
	}
	return nil
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (*Credential, error) {
	var c Credential
	if err := r.col.FindOne(ctx, filter).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *MongoRepository) GetByEmail(ctx context.Context, email string) (*Credential, error) {
	return r.findOne(ctx, bson.M{"email": normalizeEmail(email)})
}

func (r *MongoRepository) GetByUID(ctx context.Context, uid string) (*Credential, error) {
	return r.findOne(ctx, bson.M{"_id": uid})
}

func (r *MongoRepository) UpdatePassword(ctx context.Context, uid, hash string, at time.Time) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": uid}, bson.M{"$set": bson.M{
		"passwordHash":      hash,
		"passwordChangedAt": at,
		"updatedAt":         at,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *MongoRepository) UIDs(ctx context.Context) ([]string, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1}).SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []string
	for cur.Next(ctx) {
		var row struct {
			UID string `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out = append(out, row.UID)
	}
	return out, cur.Err()
}

// MemoryRepository is an in-process Repository for development and tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	byUID   map[string]*Credential
	byEmail map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byUID: map[string]*Credential{}, byEmail: map[string]string{}}
}

func (r *MemoryRepository) Create(ctx context.Context, c *Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	email := normalizeEmail(c.Email)
	if _, ok := r.byEmail[email]; ok {
		return ErrEmailInUse
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	c.Email = email
	cp := *c
	r.byUID[c.UID] = &cp
	r.byEmail[email] = c.UID
	return nil
}

func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (*Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	uid, ok := r.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, nil
	}
	cp := *r.byUID[uid]
	return &cp, nil
}

func (r *MemoryRepository) GetByUID(ctx context.Context, uid string) (*Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byUID[uid]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *MemoryRepository) UpdatePassword(ctx context.Context, uid, hash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byUID[uid]
	if !ok {
		return ErrUserNotFound
	}
	c.PasswordHash = hash
	c.PasswordChangedAt = at
	c.UpdatedAt = at
	return nil
}

func (r *MemoryRepository) UIDs(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byUID))
	for uid := range r.byUID {
		out = append(out, uid)
	}
	sort.Strings(out)
	return out, nil
}
