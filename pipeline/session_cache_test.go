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
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisCache(t *testing.T) *RedisSessionCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSessionCacheWithClient(client)
}

func TestRedisSessionRoundTrip(t *testing.T) {
	cache := newTestRedisCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Append(ctx, "WF-1", "user", "symptoms report"))
	require.NoError(t, cache.Append(ctx, "WF-1", "assistant", "triage assessment"))

	turns, err := cache.Transcript(ctx, "WF-1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "user", turns[0].Role)
	assert.Equal(t, "symptoms report", turns[0].Text)
	assert.Equal(t, "assistant", turns[1].Role)
}

func TestRedisSessionIsolation(t *testing.T) {
	cache := newTestRedisCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Append(ctx, "WF-1", "user", "a"))
	require.NoError(t, cache.Append(ctx, "WF-2", "user", "b"))

	turns, err := cache.Transcript(ctx, "WF-1")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "a", turns[0].Text)
}

func TestRedisSessionTrimsOldTurns(t *testing.T) {
	cache := newTestRedisCache(t)
	ctx := context.Background()

	for i := 0; i < sessionMaxTurns+10; i++ {
		require.NoError(t, cache.Append(ctx, "WF-1", "user", fmt.Sprintf("turn %d", i)))
	}

	turns, err := cache.Transcript(ctx, "WF-1")
	require.NoError(t, err)
	require.Len(t, turns, sessionMaxTurns)
	assert.Equal(t, "turn 10", turns[0].Text)
	assert.Equal(t, fmt.Sprintf("turn %d", sessionMaxTurns+9), turns[len(turns)-1].Text)
}

func TestRedisSessionEmptyTranscript(t *testing.T) {
	cache := newTestRedisCache(t)

	turns, err := cache.Transcript(context.Background(), "absent")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestMemorySessionRoundTrip(t *testing.T) {
	cache := NewMemorySessionCache()
	ctx := context.Background()

	require.NoError(t, cache.Append(ctx, "WF-1", "user", "hello"))
	require.NoError(t, cache.Append(ctx, "WF-1", "assistant", "hi"))

	turns, err := cache.Transcript(ctx, "WF-1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "hi", turns[1].Text)
}

func TestMemorySessionTrimsOldTurns(t *testing.T) {
	cache := NewMemorySessionCache()
	ctx := context.Background()

	for i := 0; i < sessionMaxTurns+5; i++ {
		require.NoError(t, cache.Append(ctx, "WF-1", "user", fmt.Sprintf("turn %d", i)))
	}

	turns, err := cache.Transcript(ctx, "WF-1")
	require.NoError(t, err)
	assert.Len(t, turns, sessionMaxTurns)
	assert.Equal(t, "turn 5", turns[0].Text)
}

func TestMemorySessionReturnsCopy(t *testing.T) {
	cache := NewMemorySessionCache()
	ctx := context.Background()

	require.NoError(t, cache.Append(ctx, "WF-1", "user", "original"))

	turns, err := cache.Transcript(ctx, "WF-1")
	require.NoError(t, err)
	turns[0].Text = "mutated"

	fresh, err := cache.Transcript(ctx, "WF-1")
	require.NoError(t, err)
	assert.Equal(t, "original", fresh[0].Text)
}
