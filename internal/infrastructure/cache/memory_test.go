package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ecolens/backend/internal/domain"
)

func newTestMemoryCache(t *testing.T, cfg MemoryConfig) *MemoryCache {
	t.Helper()
	c := NewMemoryCache(cfg, nil)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestMemoryCache_SetAndGet(t *testing.T) {
	cache := newTestMemoryCache(t, MemoryConfig{})
	ctx := context.Background()

	tests := []struct {
		name  string
		key   string
		value interface{}
		want  interface{}
	}{
		{
			name:  "string",
			key:   "oat%20drink",
			value: "cached",
			want:  "cached",
		},
		{
			name:  "number becomes float64",
			key:   "count",
			value: 3,
			want:  3.0,
		},
		{
			name: "product list becomes generic JSON",
			key:  "nutella",
			value: []domain.ProductInfo{
				{ID: "3017620422003", Name: "Nutella", Categories: []string{"Spreads"}, Labels: []string{}},
			},
			want: []interface{}{
				map[string]interface{}{
					"id":   "3017620422003",
					"name": "Nutella",
					"environmental_score_data": map[string]interface{}{
						"adjusted_score":  0.0,
						"overall_grade":   "",
						"packaging_score": 0.0,
					},
					"categories": []interface{}{"Spreads"},
					"labels":     []interface{}{},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := cache.Set(ctx, tt.key, tt.value, time.Minute); err != nil {
				t.Fatalf("Set() error = %v", err)
			}

			got, err := cache.Get(ctx, tt.key)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("Get() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestMemoryCache_SetUnencodable(t *testing.T) {
	cache := newTestMemoryCache(t, MemoryConfig{})

	if err := cache.Set(context.Background(), "bad", make(chan int), time.Minute); err == nil {
		t.Error("Set() error = nil, want encoding error")
	}
}

func TestMemoryCache_Expiration(t *testing.T) {
	cache := newTestMemoryCache(t, MemoryConfig{})
	ctx := context.Background()

	if err := cache.Set(ctx, "short-ttl", "value", time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, err := cache.Get(ctx, "short-ttl"); !errors.Is(err, domain.ErrCacheMiss) {
		t.Errorf("Get() error = %v, want ErrCacheMiss after expiration", err)
	}
	if exists, _ := cache.Exists(ctx, "short-ttl"); exists {
		t.Error("Exists() = true, want false after expiration")
	}
}

func TestMemoryCache_Get_CacheMiss(t *testing.T) {
	cache := newTestMemoryCache(t, MemoryConfig{})

	_, err := cache.Get(context.Background(), "non-existent-key")
	if !errors.Is(err, domain.ErrCacheMiss) {
		t.Errorf("Get() error = %v, want %v", err, domain.ErrCacheMiss)
	}
}

func TestMemoryCache_DeleteAndExists(t *testing.T) {
	cache := newTestMemoryCache(t, MemoryConfig{})
	ctx := context.Background()
	key := "detection:https://shop.example/p"

	if exists, err := cache.Exists(ctx, key); err != nil || exists {
		t.Fatalf("Exists() = %v, %v; want false, nil", exists, err)
	}

	if err := cache.Set(ctx, key, "value", time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if exists, _ := cache.Exists(ctx, key); !exists {
		t.Error("Exists() = false, want true after setting value")
	}

	if err := cache.Delete(ctx, key); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
	if _, err := cache.Get(ctx, key); !errors.Is(err, domain.ErrCacheMiss) {
		t.Errorf("Get() after delete error = %v, want %v", err, domain.ErrCacheMiss)
	}
	if size := cache.Size(); size != 0 {
		t.Errorf("Size() = %d, want 0", size)
	}
}

func TestMemoryCache_MaxEntries(t *testing.T) {
	cache := newTestMemoryCache(t, MemoryConfig{MaxEntries: 2})
	ctx := context.Background()

	cache.Set(ctx, "soon", 1, time.Minute)
	cache.Set(ctx, "later", 2, time.Hour)
	cache.Set(ctx, "later", 3, time.Hour) // overwrite does not evict
	if size := cache.Size(); size != 2 {
		t.Fatalf("Size() = %d, want 2", size)
	}

	cache.Set(ctx, "new", 4, time.Hour)

	if size := cache.Size(); size != 2 {
		t.Errorf("Size() = %d, want 2", size)
	}
	if _, err := cache.Get(ctx, "soon"); !errors.Is(err, domain.ErrCacheMiss) {
		t.Errorf("entry closest to expiry should be evicted, got err = %v", err)
	}
	if got, _ := cache.Get(ctx, "later"); got != 3.0 {
		t.Errorf("Get(later) = %v, want 3", got)
	}
}

func TestMemoryCache_Janitor(t *testing.T) {
	cache := newTestMemoryCache(t, MemoryConfig{CleanupInterval: 5 * time.Millisecond})
	ctx := context.Background()

	cache.Set(ctx, "a", 1, time.Millisecond)
	cache.Set(ctx, "b", 2, time.Minute)

	deadline := time.Now().Add(2 * time.Second)
	for cache.Size() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("Size() = %d, want expired entry removed", cache.Size())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMemoryCache_CloseTwice(t *testing.T) {
	cache := NewMemoryCache(MemoryConfig{}, nil)

	if err := cache.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := cache.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := cache.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestMemoryCache_Concurrent(t *testing.T) {
	cache := newTestMemoryCache(t, MemoryConfig{MaxEntries: 5})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := string(rune('a' + id))
			if err := cache.Set(ctx, key, id, time.Minute); err != nil {
				t.Errorf("Concurrent Set() error = %v", err)
			}
			cache.Get(ctx, key)
			cache.Exists(ctx, key)
		}(i)
	}
	wg.Wait()

	if size := cache.Size(); size > 5 {
		t.Errorf("Size() = %d, want at most 5", size)
	}
}

func TestNew(t *testing.T) {
	store, err := New(Config{}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer store.Close()
	if _, ok := store.(*MemoryCache); !ok {
		t.Errorf("New() = %T, want *MemoryCache by default", store)
	}

	if _, err := New(Config{Backend: "memcached"}, nil); err == nil {
		t.Error("New() error = nil, want unknown backend error")
	}

	if _, err := New(Config{Backend: BackendRedis}, nil); !errors.Is(err, ErrEmptyAddress) {
		t.Errorf("New() error = %v, want ErrEmptyAddress", err)
	}
}
