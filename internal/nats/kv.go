package nats

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go/jetstream"
)

const (
	// OffersBucket holds saved offers keyed "<userID>.<offerID>".
	OffersBucket = "OFFERS"

	// KnowledgeBucket holds knowledge items keyed by item id.
	KnowledgeBucket = "KNOWLEDGE"
)

// ErrKeyNotFound is returned when a KV key does not exist.
var ErrKeyNotFound = errors.New("key not found")

// KVStore wraps a JetStream key-value bucket with the opaque-id CRUD the
// services need: save, update, delete, get-one and get-all scoped by a key
// prefix.
type KVStore struct {
	kv jetstream.KeyValue
}

// NewKVStore opens or creates the named bucket.
func NewKVStore(ctx context.Context, client *Client, bucket string) (*KVStore, error) {
	js := client.JetStream()

	kv, err := js.KeyValue(ctx, bucket)
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketNotFound) {
			return nil, fmt.Errorf("failed to open bucket %s: %w", bucket, err)
		}
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:  bucket,
			History: 1,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
	}

	return &KVStore{kv: kv}, nil
}

// Put stores a value under key.
func (s *KVStore) Put(ctx context.Context, key string, value []byte) error {
	if _, err := s.kv.Put(ctx, key, value); err != nil {
		return fmt.Errorf("kv put %s: %w", key, err)
	}
	return nil
}

// Get retrieves the value stored under key.
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("kv get %s: %w", key, err)
	}
	return entry.Value(), nil
}

// Delete removes the value stored under key.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	if err := s.kv.Delete(ctx, key); err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("kv delete %s: %w", key, err)
	}
	return nil
}

// ListValues returns all values whose key starts with prefix. An empty
// prefix returns the whole bucket.
func (s *KVStore) ListValues(ctx context.Context, prefix string) ([][]byte, error) {
	lister, err := s.kv.ListKeys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("kv list: %w", err)
	}
	defer lister.Stop()

	var values [][]byte
	for key := range lister.Keys() {
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			continue
		}
		entry, err := s.kv.Get(ctx, key)
		if err != nil {
			continue
		}
		values = append(values, entry.Value())
	}

	return values, nil
}
