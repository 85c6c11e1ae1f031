package db_test

import (
	"context"
	"testing"

	"github.com/ivanshamaev/rag-hh/internal/db"
)

// Connection URLs are validated before any dial: both constructors must
// reject malformed input without touching the network.

func TestNewPostgresPool_RejectsMalformedURL(t *testing.T) {
	if _, err := db.NewPostgresPool(context.Background(), "postgres://u:p@host:notaport/db"); err == nil {
		t.Error("malformed DATABASE_URL must be rejected")
	}
}

func TestNewRedisClient_RejectsMalformedURL(t *testing.T) {
	if _, err := db.NewRedisClient(context.Background(), "not-a-redis-url"); err == nil {
		t.Error("malformed REDIS_URL must be rejected")
	}
}
