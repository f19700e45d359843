package rules

import (
	"regexp"
	"sync"
)

type cacheKey struct {
	entity  string
	pattern string
}

// Cache stores compiled patterns keyed by (entity type, pattern string) so
// repeated scans do not recompile identical patterns. It is an explicit
// object rather than package state so tests can run independent compilers
// with independent caches.
type Cache struct {
	mu      sync.RWMutex
	entries map[cacheKey]*regexp.Regexp
}

// NewCache creates an empty pattern cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[cacheKey]*regexp.Regexp)}
}

// Compile returns the compiled form of pattern for the given entity type,
// reusing a cached result when present. A malformed pattern returns a
// RuleCompilationError naming the entity and the pattern.
func (c *Cache) Compile(entity, pattern string) (*regexp.Regexp, error) {
	key := cacheKey{entity: entity, pattern: pattern}

	c.mu.RLock()
	compiled, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return compiled, nil
	}

	compiled, err := regexp.Compile(pattern)
	if err != nil {
		return nil, &RuleCompilationError{Entity: entity, Pattern: pattern, Err: err}
	}

	c.mu.Lock()
	// Another goroutine may have compiled the same pattern; keep its copy so
	// repeated lookups stay pointer-stable.
	if existing, ok := c.entries[key]; ok {
		compiled = existing
	} else {
		c.entries[key] = compiled
	}
	c.mu.Unlock()

	return compiled, nil
}

// Len reports the number of cached patterns.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Compiler turns pattern recognizer definitions into reusable matchers.
// Compilation is idempotent and side-effect free beyond populating the cache.
type Compiler struct {
	cache *Cache
}

// NewCompiler creates a compiler backed by the given cache. A nil cache
// gets a private one.
func NewCompiler(cache *Cache) *Compiler {
	if cache == nil {
		cache = NewCache()
	}
	return &Compiler{cache: cache}
}

// Compile compiles every pattern of every definition. The first malformed
// pattern fails the whole load.
func (c *Compiler) Compile(defs []PatternRecognizerDef) ([]CompiledRecognizer, error) {
	recognizers := make([]CompiledRecognizer, 0, len(defs))
	for _, def := range defs {
		score := DefaultScoreThreshold
		if def.Score != nil {
			score = *def.Score
		}

		compiled := CompiledRecognizer{
			Entity:   def.Entity,
			Patterns: make([]CompiledPattern, 0, len(def.Patterns)),
			Score:    score,
			Context:  def.Context,
		}
		for _, pattern := range def.Patterns {
			re, err := c.cache.Compile(def.Entity, pattern)
			if err != nil {
				return nil, err
			}
			compiled.Patterns = append(compiled.Patterns, CompiledPattern{Expr: pattern, Regexp: re})
		}
		recognizers = append(recognizers, compiled)
	}
	return recognizers, nil
}
