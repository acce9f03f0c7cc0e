package cache

import (
	"testing"
	"time"

	"chanwatch/internal/models"
)

func TestCacheManager_GetSet(t *testing.T) {
	cacheManager := NewManager(15 * time.Minute)

	key := Key(models.SourceTelegram, "somechannel", "stats")
	value := "rendered-stats"

	cacheManager.Set(key, value, 15*time.Minute)

	if cached, found := cacheManager.Get(key); found {
		if cachedValue, ok := cached.(string); ok {
			if cachedValue != value {
				t.Errorf("Expected value %s, got %s", value, cachedValue)
			}
		} else {
			t.Error("Failed to type assert cached value")
		}
	} else {
		t.Error("Expected to find cached value")
	}
}

func TestCacheManager_Key(t *testing.T) {
	key := Key(models.SourceYouTube, "UCabc", "comments")
	if key != "youtube/UCabc/comments" {
		t.Errorf("Unexpected key %q", key)
	}
}

func TestCacheManager_InvalidateChannel(t *testing.T) {
	cacheManager := NewManager(15 * time.Minute)

	cacheManager.Set(Key(models.SourceTelegram, "one", "stats"), "a", time.Minute)
	cacheManager.Set(Key(models.SourceTelegram, "one", "comments")+"?min_likes=5", "b", time.Minute)
	cacheManager.Set(Key(models.SourceTelegram, "two", "stats"), "c", time.Minute)

	cacheManager.InvalidateChannel(models.SourceTelegram, "one")

	if _, found := cacheManager.Get(Key(models.SourceTelegram, "one", "stats")); found {
		t.Error("Expected channel one stats to be invalidated")
	}
	if _, found := cacheManager.Get(Key(models.SourceTelegram, "one", "comments") + "?min_likes=5"); found {
		t.Error("Expected query-suffixed payload to be invalidated")
	}
	if _, found := cacheManager.Get(Key(models.SourceTelegram, "two", "stats")); !found {
		t.Error("Expected other channel to stay cached")
	}
}

func TestCacheManager_Flush(t *testing.T) {
	cacheManager := NewManager(15 * time.Minute)

	cacheManager.Set("key1", "value1", 15*time.Minute)
	cacheManager.Set("key2", "value2", 15*time.Minute)

	cacheManager.Flush()

	if _, found := cacheManager.Get("key1"); found {
		t.Error("Expected key1 to be flushed")
	}
	if _, found := cacheManager.Get("key2"); found {
		t.Error("Expected key2 to be flushed")
	}
}
