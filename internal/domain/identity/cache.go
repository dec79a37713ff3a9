package identity

import "sync"

// Cache holds resolved identities for one batch session.
// Keys are raw tokens as they appear in the batch.
type Cache struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewCache() *Cache {
	return &Cache{records: make(map[string]Record)}
}

func (c *Cache) Get(token string) (Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[token]
	return rec, ok
}

// Put stores a record. Lookup failures are never cached so they are retried.
func (c *Cache) Put(token string, rec Record) {
	if rec.LookupFailed || rec.Status == StatusPending {
		return
	}
	c.mu.Lock()
	c.records[token] = rec
	c.mu.Unlock()
}

func (c *Cache) Invalidate(token string) {
	c.mu.Lock()
	delete(c.records, token)
	c.mu.Unlock()
}

func (c *Cache) Reset() {
	c.mu.Lock()
	c.records = make(map[string]Record)
	c.mu.Unlock()
}

// Split partitions tokens into cached records and tokens still to look up.
func (c *Cache) Split(tokens []string) (map[string]Record, []string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	hit := make(map[string]Record)
	var miss []string
	for _, t := range tokens {
		if rec, ok := c.records[t]; ok {
			hit[t] = rec
			continue
		}
		miss = append(miss, t)
	}
	return hit, miss
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}
