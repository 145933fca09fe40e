package usecases

import (
	"sync"
	"time"

	"github.com/sand/digiseba/backend/internal/entities"
)

// ReviewItem is a money request as shown on the admin review board.
type ReviewItem struct {
	entities.MoneyRequest
	UserName string             `json:"userName"`
	Badge    entities.Badge     `json:"badge"`
	Mismatch *entities.Mismatch `json:"mismatch,omitempty"`
}

func newReviewItem(req entities.MoneyRequest, userName string) ReviewItem {
	item := ReviewItem{MoneyRequest: req, UserName: userName, Badge: entities.DeriveBadge(&req)}
	if req.Verification() == entities.VerificationMismatch {
		m := req.Mismatch()
		item.Mismatch = &m
	}
	return item
}

// RequestCache holds the last loaded review board keyed by request id.
// Server-side changes are patched in by key instead of reloading the board.
// Patches that land while a board is being loaded are kept and win over the
// loaded rows when they are newer.
type RequestCache struct {
	mu       sync.RWMutex
	items    map[string]ReviewItem
	order    []string
	loadedAt time.Time

	loading int
	late    map[string]entities.MoneyRequest
}

func NewRequestCache() *RequestCache {
	return &RequestCache{items: make(map[string]ReviewItem)}
}

// BeginLoad marks the start of a board load. It must be followed by Replace
// or CancelLoad.
func (c *RequestCache) BeginLoad() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.loading++
	if c.late == nil {
		c.late = make(map[string]entities.MoneyRequest)
	}
}

// CancelLoad ends a load that produced no board.
func (c *RequestCache) CancelLoad() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endLoad()
}

func (c *RequestCache) endLoad() {
	if c.loading > 0 {
		c.loading--
	}
	if c.loading == 0 {
		c.late = nil
	}
}

// Replace swaps in a freshly loaded board, newest first. A cached or late
// patched row newer than the loaded one is kept, and the returned items
// reflect that.
func (c *RequestCache) Replace(items []ReviewItem, at time.Time) []ReviewItem {
	c.mu.Lock()
	defer c.mu.Unlock()

	merged := make(map[string]ReviewItem, len(items))
	order := make([]string, 0, len(items))
	out := make([]ReviewItem, 0, len(items))
	for _, item := range items {
		if cached, ok := c.items[item.ID]; ok && cached.UpdatedAt.After(item.UpdatedAt) {
			item = newReviewItem(cached.MoneyRequest, item.UserName)
		}
		if patch, ok := c.late[item.ID]; ok && patch.UpdatedAt.After(item.UpdatedAt) {
			item = newReviewItem(patch, item.UserName)
		}
		merged[item.ID] = item
		order = append(order, item.ID)
		out = append(out, item)
	}

	c.items = merged
	c.order = order
	c.loadedAt = at
	c.endLoad()
	return out
}

// Apply patches one request into the cache. Unknown ids are ignored, since a
// request the board never loaded has nothing to patch, unless a load is in
// flight.
func (c *RequestCache) Apply(req entities.MoneyRequest) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loading > 0 {
		if prev, ok := c.late[req.ID]; !ok || !prev.UpdatedAt.After(req.UpdatedAt) {
			c.late[req.ID] = req
		}
	}

	item, ok := c.items[req.ID]
	if !ok {
		return false
	}
	c.items[req.ID] = newReviewItem(req, item.UserName)
	return true
}

// Add puts a new request at the top of a loaded board.
func (c *RequestCache) Add(req entities.MoneyRequest, userName string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loadedAt.IsZero() {
		return
	}
	if _, ok := c.items[req.ID]; !ok {
		c.order = append([]string{req.ID}, c.order...)
	}
	c.items[req.ID] = newReviewItem(req, userName)
}

func (c *RequestCache) Get(id string) (ReviewItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[id]
	return item, ok
}

// Snapshot returns the cached items, the time they were loaded, and whether
// anything was loaded at all.
func (c *RequestCache) Snapshot() ([]ReviewItem, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.loadedAt.IsZero() {
		return nil, time.Time{}, false
	}
	items := make([]ReviewItem, 0, len(c.order))
	for _, id := range c.order {
		items = append(items, c.items[id])
	}
	return items, c.loadedAt, true
}
