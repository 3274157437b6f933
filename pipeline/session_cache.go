// Copyright 2025 CareFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"careflow/platform/llm"
)

// Session cache tuning.
const (
	sessionKeyPrefix = "careflow:session:"
	sessionTTL       = 24 * time.Hour
	sessionMaxTurns  = 50
)

// RedisSessionCache stores agent conversation transcripts in Redis so
// multi-turn context survives process restarts. Implements
// llm.SessionStore.
type RedisSessionCache struct {
	client *redis.Client
}

// NewRedisSessionCache connects to Redis and verifies the connection.
func NewRedisSessionCache(addr, password string, db int) (*RedisSessionCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	return &RedisSessionCache{client: client}, nil
}

// NewRedisSessionCacheWithClient wraps an existing client. Used in
// tests with miniredis.
func NewRedisSessionCacheWithClient(client *redis.Client) *RedisSessionCache {
	return &RedisSessionCache{client: client}
}

// Append records one conversation turn, trims the transcript to the
// most recent turns, and refreshes the TTL.
func (c *RedisSessionCache) Append(ctx context.Context, sessionID, role, text string) error {
	payload, err := json.Marshal(llm.SessionTurn{Role: role, Text: text})
	if err != nil {
		return fmt.Errorf("failed to marshal session turn: %w", err)
	}

	key := sessionKeyPrefix + sessionID
	pipe := c.client.TxPipeline()
	pipe.RPush(ctx, key, payload)
	pipe.LTrim(ctx, key, -sessionMaxTurns, -1)
	pipe.Expire(ctx, key, sessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append session turn: %w", err)
	}
	return nil
}

// Transcript returns the stored turns for a session, oldest first.
func (c *RedisSessionCache) Transcript(ctx context.Context, sessionID string) ([]llm.SessionTurn, error) {
	key := sessionKeyPrefix + sessionID
	entries, err := c.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session %s: %w", sessionID, err)
	}

	turns := make([]llm.SessionTurn, 0, len(entries))
	for _, entry := range entries {
		var turn llm.SessionTurn
		if err := json.Unmarshal([]byte(entry), &turn); err != nil {
			return nil, fmt.Errorf("corrupt session entry in %s: %w", sessionID, err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// Close releases the underlying Redis connection.
func (c *RedisSessionCache) Close() error {
	return c.client.Close()
}

// MemorySessionCache is an in-process llm.SessionStore used when Redis
// is not configured.
type MemorySessionCache struct {
	mu       sync.RWMutex
	sessions map[string][]llm.SessionTurn
}

// NewMemorySessionCache returns an empty in-memory store.
func NewMemorySessionCache() *MemorySessionCache {
	return &MemorySessionCache{sessions: make(map[string][]llm.SessionTurn)}
}

// Append records one conversation turn, trimming to the most recent
// turns.
func (c *MemorySessionCache) Append(ctx context.Context, sessionID, role, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	turns := append(c.sessions[sessionID], llm.SessionTurn{Role: role, Text: text})
	if len(turns) > sessionMaxTurns {
		turns = turns[len(turns)-sessionMaxTurns:]
	}
	c.sessions[sessionID] = turns
	return nil
}

// Transcript returns a copy of the stored turns, oldest first.
func (c *MemorySessionCache) Transcript(ctx context.Context, sessionID string) ([]llm.SessionTurn, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	turns := c.sessions[sessionID]
	out := make([]llm.SessionTurn, len(turns))
	copy(out, turns)
	return out, nil
}
