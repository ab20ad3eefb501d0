package middleware

// In-memory response cache. Entries are evicted least recently used once the
// cache is full and expire after the configured TTL so reads of the current
// month pick up new polls.

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
)

// Cache is a size- and age-bounded cache of unary responses.
type Cache struct {
	entries *expirable.LRU[uint64, interface{}]
	prefix  string
}

// NewCache sets up an LRU cache holding at most size responses for ttl each.
// A ttl of zero keeps entries until they are evicted. Only methods whose full
// name starts with prefix are cached; an empty prefix caches every method.
func NewCache(size int, ttl time.Duration, prefix string) (*Cache, error) {
	if size <= 0 {
		return nil, fmt.Errorf("cache size must be positive, got %d", size)
	}
	return &Cache{
		entries: expirable.NewLRU[uint64, interface{}](size, nil, ttl),
		prefix:  prefix,
	}, nil
}

// Interceptor returns the cached response for identical requests. Errors are
// never cached.
func (c *Cache) Interceptor(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (interface{}, error) {
	if !strings.HasPrefix(info.FullMethod, c.prefix) {
		return handler(ctx, req)
	}
	key, ok := generateCacheKey(info.FullMethod, req)
	if !ok {
		return handler(ctx, req)
	}

	if cached, ok := c.entries.Get(key); ok {
		return cached, nil
	}

	resp, err := handler(ctx, req)
	if err != nil {
		return nil, err
	}

	c.entries.Add(key, resp)
	return resp, nil
}

// Len reports the number of live cached responses.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// generateCacheKey hashes the method and the serialized request. Proto
// messages are marshalled deterministically so map-backed messages such as
// structpb.Struct produce stable keys.
func generateCacheKey(method string, req interface{}) (uint64, bool) {
	var (
		reqBytes []byte
		err      error
	)
	if msg, isProto := req.(proto.Message); isProto {
		reqBytes, err = proto.MarshalOptions{Deterministic: true}.Marshal(msg)
	} else {
		reqBytes, err = json.Marshal(req)
	}
	if err != nil {
		return 0, false
	}

	h := xxhash.New()
	_, _ = h.WriteString(method)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(reqBytes)
	return h.Sum64(), true
}
