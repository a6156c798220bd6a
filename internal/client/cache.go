package client

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Cache holds decoded GET responses keyed by resource ("forms:12",
// "reports:expiring:30"). Mutations drop keys through Invalidate.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

type entry struct {
	val    any
	stored time.Time
}

// NewCache returns a cache whose entries expire after ttl; zero keeps them until invalidated.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{entries: make(map[string]entry), ttl: ttl, now: time.Now}
}

func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || (c.ttl > 0 && c.now().Sub(e.stored) > c.ttl) {
		return nil, false
	}
	return e.val, true
}

func (c *Cache) Set(key string, v any) {
	c.mu.Lock()
	c.entries[key] = entry{val: v, stored: c.now()}
	c.mu.Unlock()
}

// Update replaces a cached value in place. fn is not called when key is absent.
func (c *Cache) Update(key string, fn func(any) any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return false
	}
	e.val = fn(e.val)
	c.entries[key] = e
	return true
}

// Invalidate drops exact keys, or every key under a prefix written as "reports:*".
func (c *Cache) Invalidate(patterns ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range patterns {
		if prefix, ok := strings.CutSuffix(p, "*"); ok {
			for k := range c.entries {
				if strings.HasPrefix(k, prefix) {
					delete(c.entries, k)
				}
			}
			continue
		}
		delete(c.entries, p)
	}
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

type Mutation string

const (
	CreateEmployee    Mutation = "employee.create"
	UpdateEmployee    Mutation = "employee.update"
	DeleteEmployee    Mutation = "employee.delete"
	CreateLicense     Mutation = "license.create"
	UpdateLicense     Mutation = "license.update"
	DeleteLicense     Mutation = "license.delete"
	UploadDocument    Mutation = "document.upload"
	DeleteDocument    Mutation = "document.delete"
	CreateIncident    Mutation = "incident.create"
	SendForm          Mutation = "form.send"
	SignForm          Mutation = "form.sign"
	SaveOnboarding    Mutation = "onboarding.save"
	AdvanceOnboarding Mutation = "onboarding.next"
)

// Invalidations lists the cache keys a mutation on employeeID makes stale.
func Invalidations(m Mutation, employeeID uint) []string {
	emp := fmt.Sprintf("employee:%d", employeeID)
	switch m {
	case CreateEmployee, DeleteEmployee:
		return []string{"employees:*", emp, "reports:*"}
	case UpdateEmployee:
		return []string{"employees:*", emp, "onboarding:" + id(employeeID), "reports:*"}
	case CreateLicense, UpdateLicense, DeleteLicense:
		return []string{"licenses:" + id(employeeID) + ":*", emp, "reports:*"}
	case UploadDocument, DeleteDocument:
		return []string{"documents:" + id(employeeID), emp, "reports:*"}
	case CreateIncident:
		return []string{"incidents:" + id(employeeID), emp}
	case SendForm, SignForm:
		return []string{"forms:" + id(employeeID), "reports:summary"}
	case SaveOnboarding, AdvanceOnboarding:
		return []string{"onboarding:" + id(employeeID), emp, "employees:*", "reports:summary"}
	}
	return nil
}

func id(v uint) string { return fmt.Sprint(v) }
