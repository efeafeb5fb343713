package compile

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// cacheSize bounds how many compiled maps stay resident.
const cacheSize = 64

var (
	cacheOnce sync.Once
	cache     *lru.Cache
)

func cacheKey(id, module, function string, opts Options) string {
	return fmt.Sprintf("%s|%s|%s|%s", id, module, function, opts.key())
}

func cacheGet(id, module, function string, opts Options) (*CompiledMap, bool) {
	cacheOnce.Do(initCache)
	v, ok := cache.Get(cacheKey(id, module, function, opts))
	if !ok {
		return nil, false
	}
	return v.(*CompiledMap), true
}

func cachePut(id, module, function string, opts Options, c *CompiledMap) {
	cacheOnce.Do(initCache)
	cache.Add(cacheKey(id, module, function, opts), c)
}

func initCache() {
	cache, _ = lru.New(cacheSize)
}

// PurgeCache drops every cached compiled map.
func PurgeCache() {
	cacheOnce.Do(initCache)
	cache.Purge()
}
