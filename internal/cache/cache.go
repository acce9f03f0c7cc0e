// Package cache holds short-lived rendered API responses so repeated reads
// of the same channel do not re-walk the corpus directory tree.
package cache

import (
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"chanwatch/internal/models"
)

type Manager struct {
	cache *cache.Cache
}

func NewManager(defaultTTL time.Duration) *Manager {
	return &Manager{
		cache: cache.New(defaultTTL, 10*time.Minute),
	}
}

// Key builds the cache key for one channel resource. Query-dependent
// payloads append their own suffix.
func Key(source models.Source, channel, resource string) string {
	return fmt.Sprintf("%s/%s/%s", source, channel, resource)
}

func (m *Manager) Get(key string) (interface{}, bool) {
	return m.cache.Get(key)
}

func (m *Manager) Set(key string, value interface{}, ttl time.Duration) {
	m.cache.Set(key, value, ttl)
}

// InvalidateChannel drops every cached payload of one channel, including
// query-suffixed variants.
func (m *Manager) InvalidateChannel(source models.Source, channel string) {
	prefix := fmt.Sprintf("%s/%s/", source, channel)
	for key := range m.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			m.cache.Delete(key)
		}
	}
}

func (m *Manager) Flush() {
	m.cache.Flush()
}
