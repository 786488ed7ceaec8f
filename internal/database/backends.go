package database

import (
	"context"
	"time"

	"github.com/presensync/presensync/backend/go-services/internal/auth"
	"github.com/presensync/presensync/backend/go-services/internal/config"
	"github.com/presensync/presensync/backend/go-services/internal/sessions"
	"github.com/presensync/presensync/backend/go-services/internal/store"
	"github.com/presensync/presensync/backend/go-services/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// Collection names in the configured database.
const (
	DocumentsCollection   = "documents"
	CredentialsCollection = "credentials"
	SessionsCollection    = "sessions"
)

// Backends are the storage dependencies shared by the server and the CLI.
// Every field is usable; anything not configured or unreachable falls back to
// an in-process implementation and the matching flag stays false.
type Backends struct {
	Redis *redis.Client
	Mongo *mongo.Client

	Store       store.Store
	Credentials auth.Repository
	Attempts    auth.AttemptLimiter
	Sessions    sessions.Repository

	MongoConnected bool
	RedisConnected bool
}

// ConnectMongoRetry calls ConnectMongo up to attempts times, doubling the wait between tries.
func ConnectMongoRetry(ctx context.Context, uri string, timeout time.Duration, attempts int) (*mongo.Client, error) {
	backoff := time.Second
	var (
		client *mongo.Client
		err    error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		client, err = ConnectMongo(ctx, uri, timeout)
		if err == nil {
			return client, nil
		}
		logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, attempts, err)
		if attempt < attempts {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
		}
	}
	return nil, err
}

// Open connects to Redis and MongoDB when configured. Redis serves the token
// blacklist, login attempts and refresh sessions; MongoDB serves documents,
// credentials and, without Redis, refresh sessions.
func Open(ctx context.Context, cfg *config.Config, mongoAttempts int) *Backends {
	b := &Backends{}

	if cfg.Redis.Host != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
			_ = client.Close()
		} else {
			logger.Infof("connected to Redis %s:%s", cfg.Redis.Host, cfg.Redis.Port)
			b.Redis = client
			b.RedisConnected = true
			sessions.SetBlacklistClient(client)
			b.Attempts = auth.NewRedisAttempts(client, cfg.Auth.MaxFailedAttempts, cfg.Auth.AttemptWindow)
			b.Sessions = sessions.NewRedisRepository(client, "session:")
		}
	}

	if cfg.MongoDB.URI != "" {
		client, err := ConnectMongoRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, mongoAttempts)
		if err != nil {
			logger.Warnf("could not connect to MongoDB after %d attempts: %v", mongoAttempts, err)
		} else {
			db := client.Database(cfg.MongoDB.Database)
			b.Mongo = client
			b.MongoConnected = true
			b.Store = store.NewMongoStore(db.Collection(DocumentsCollection))
			b.Credentials = auth.NewMongoRepository(db.Collection(CredentialsCollection))
			if b.Sessions == nil {
				b.Sessions = sessions.NewMongoRepository(db.Collection(SessionsCollection))
			}
		}
	}

	if b.Store == nil {
		logger.Warnf("using in-memory document store; data is lost on restart")
		b.Store = store.NewMemoryStore()
	}
	if b.Credentials == nil {
		b.Credentials = auth.NewMemoryRepository()
	}
	if b.Sessions == nil {
		b.Sessions = sessions.NewMemoryRepository()
	}
	return b
}

// Ping reports the health of each configured backend.
func (b *Backends) Ping(ctx context.Context) map[string]bool {
	deps := map[string]bool{}
	if b.Redis != nil {
		deps["redis"] = b.Redis.Ping(ctx).Err() == nil
	}
	if b.Mongo != nil {
		deps["mongodb"] = b.Mongo.Ping(ctx, nil) == nil
	}
	return deps
}

// Close disconnects the clients.
func (b *Backends) Close(ctx context.Context) {
	if b.Mongo != nil {
		_ = b.Mongo.Disconnect(ctx)
	}
	if b.Redis != nil {
		_ = b.Redis.Close()
	}
}
