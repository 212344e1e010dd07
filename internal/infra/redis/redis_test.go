//go:build !integration

package redis

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"asistente-tienda/internal/domain/ports/adapter"

	"github.com/go-redis/redis/v8"
)

type fakeRedis struct {
	mu      sync.Mutex
	data    map[string]string
	expires    map[string]time.Duration
	failGet    error
	failExpire error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, expires: map[string]time.Duration{}}
}

func (f *fakeRedis) Ping(context.Context) error { return nil }

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, exp time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	default:
		return errors.New("unsupported value")
	}
	f.expires[key] = exp
	return nil
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, exp time.Duration) (bool, error) {
	f.mu.Lock()
	_, ok := f.data[key]
	f.mu.Unlock()
	if ok {
		return false, nil
	}
	return true, f.Set(ctx, key, value, exp)
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return "", f.failGet
	}
	v, ok := f.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeRedis) Incr(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, _ := strconv.ParseInt(f.data[key], 10, 64)
	n++
	f.data[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func (f *fakeRedis) Expire(_ context.Context, key string, exp time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failExpire != nil {
		return f.failExpire
	}
	f.expires[key] = exp
	return nil
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeRedis) Close() error { return nil }

func TestRateLimiter(t *testing.T) {
	ctx := context.Background()

	t.Run("fixed window", func(t *testing.T) {
		fake := newFakeRedis()
		rl := NewRateLimiter(fake)
		for i := 0; i < 3; i++ {
			ok, err := rl.Allow(ctx, "10.0.0.1", 3, time.Minute)
			if err != nil || !ok {
				t.Fatalf("hit %d: ok=%v err=%v", i+1, ok, err)
			}
		}
		ok, err := rl.Allow(ctx, "10.0.0.1", 3, time.Minute)
		if err != nil || ok {
			t.Fatalf("4th hit must be rejected: ok=%v err=%v", ok, err)
		}
		if ok, _ := rl.Allow(ctx, "10.0.0.2", 3, time.Minute); !ok {
			t.Fatal("clients are counted separately")
		}
		key := ClientMessageKey("10.0.0.1")
		if key != "rate_limit:support:10.0.0.1" {
			t.Fatalf("unexpected key %q", key)
		}
		if fake.expires[key] != time.Minute {
			t.Fatalf("window not set on first hit: %v", fake.expires[key])
		}
	})

	t.Run("zero limit disables", func(t *testing.T) {
		fake := newFakeRedis()
		ok, err := NewRateLimiter(fake).Allow(ctx, "10.0.0.1", 0, time.Minute)
		if err != nil || !ok {
			t.Fatalf("ok=%v err=%v", ok, err)
		}
		if len(fake.data) != 0 {
			t.Fatal("disabled limiter must not touch redis")
		}
	})

	t.Run("failed expiry drops the counter", func(t *testing.T) {
		fake := newFakeRedis()
		fake.failExpire = errors.New("READONLY")
		_, err := NewRateLimiter(fake).Allow(ctx, "10.0.0.1", 3, time.Minute)
		if err == nil {
			t.Fatal("expected an error")
		}
		if _, ok := fake.data[ClientMessageKey("10.0.0.1")]; ok {
			t.Fatal("counter without expiry left behind")
		}
	})
}

func TestReplyCache(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	c := NewReplyCache(fake, 30*time.Minute)

	t.Run("miss", func(t *testing.T) {
		_, hit, err := c.Get(ctx, "abc")
		if err != nil || hit {
			t.Fatalf("hit=%v err=%v", hit, err)
		}
	})

	t.Run("put then hit", func(t *testing.T) {
		want := adapter.Completion{Text: "Enviamos a todo el país.", Model: "gpt-4o-mini", Provider: "openai",
			Usage: adapter.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}}
		if err := c.Put(ctx, "abc", want); err != nil {
			t.Fatal(err)
		}
		got, hit, err := c.Get(ctx, "abc")
		if err != nil || !hit {
			t.Fatalf("hit=%v err=%v", hit, err)
		}
		if got != want {
			t.Fatalf("got %+v, want %+v", got, want)
		}
		if fake.expires["llm_reply:abc"] != 30*time.Minute {
			t.Fatalf("ttl not applied")
		}
	})

	t.Run("corrupt entry is a miss", func(t *testing.T) {
		fake.data["llm_reply:bad"] = "{not json"
		_, hit, err := c.Get(ctx, "bad")
		if err != nil || hit {
			t.Fatalf("hit=%v err=%v", hit, err)
		}
	})

	t.Run("backend error surfaces", func(t *testing.T) {
		broken := newFakeRedis()
		broken.failGet = errors.New("connection refused")
		_, _, err := NewReplyCache(broken, time.Minute).Get(ctx, "abc")
		if err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestIsMiss(t *testing.T) {
	if !IsMiss(redis.Nil) {
		t.Fatal("redis.Nil must be a miss")
	}
	if IsMiss(errors.New("boom")) {
		t.Fatal("other errors are not misses")
	}
}
