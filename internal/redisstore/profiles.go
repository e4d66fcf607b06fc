// Package redisstore keeps correction profiles in Redis.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dgallion1/docstruct/internal/correction"
)

// DefaultPrefix namespaces profile keys.
const DefaultPrefix = "docstruct:profiles:"

// ProfileStore stores each profile as a JSON string at <prefix><document-id>.
type ProfileStore struct {
	rdb    *goredis.Client
	prefix string
}

// New wraps an existing client.
func New(rdb *goredis.Client, prefix string) *ProfileStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &ProfileStore{rdb: rdb, prefix: prefix}
}

// Dial connects to addr and checks the connection with a ping.
func Dial(ctx context.Context, addr, password string, db int, prefix string) (*ProfileStore, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(rdb, prefix), nil
}

// Close closes the underlying client.
func (s *ProfileStore) Close() error {
	return s.rdb.Close()
}

func (s *ProfileStore) key(docID string) string {
	return s.prefix + correction.Slugify(docID)
}

func (s *ProfileStore) Save(ctx context.Context, p correction.SavedCorrections) error {
	if correction.Slugify(p.DocumentID) == "" {
		return fmt.Errorf("save profile: empty document id")
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile %s: %w", p.DocumentID, err)
	}
	if err := s.rdb.Set(ctx, s.key(p.DocumentID), raw, 0).Err(); err != nil {
		return fmt.Errorf("save profile %s: %w", p.DocumentID, err)
	}
	return nil
}

func (s *ProfileStore) Load(ctx context.Context, docID string) (correction.SavedCorrections, error) {
	var p correction.SavedCorrections
	raw, err := s.rdb.Get(ctx, s.key(docID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return p, correction.ErrProfileNotFound
	}
	if err != nil {
		return p, fmt.Errorf("load profile %s: %w", docID, err)
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("decode profile %s: %w", docID, err)
	}
	return p, nil
}

// List scans the prefix. The order of SCAN is unspecified, so IDs are sorted.
func (s *ProfileStore) List(ctx context.Context) ([]string, error) {
	ids := []string{}
	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if id := strings.TrimPrefix(iter.Val(), s.prefix); id != "" {
			ids = append(ids, id)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}
