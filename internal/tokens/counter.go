// Package tokens estimates or counts tokens for tracked content. A
// precise counter can be plugged in; when it is absent or failing the
// package degrades to a heuristic estimate rather than erroring, so
// token budgeting keeps working in every environment.
package tokens

import (
	"container/list"
	"strings"
	"sync"

	"github.com/standardbeagle/membank/internal/debug"
)

// CountFunc is the pluggable precise implementation (e.g. a tokenizer
// binding). It may fail; the Counter falls back to EstimateTokens.
type CountFunc func(content string) (int, error)

// Result carries a token count and whether it came from the estimator.
type Result struct {
	Tokens   int
	Estimate bool
}

type cacheEntry struct {
	key    string
	result Result
}

// Counter counts tokens with an LRU cache keyed by content hash.
// Safe for concurrent use.
type Counter struct {
	countFn  CountFunc
	mu       sync.Mutex
	cache    map[string]*list.Element
	lruList  *list.List
	maxCache int
}

// NewCounter creates a Counter. countFn may be nil, in which case all
// results are estimates. maxCache bounds the number of cached counts.
func NewCounter(countFn CountFunc, maxCache int) *Counter {
	if maxCache < 1 {
		maxCache = 1
	}
	return &Counter{
		countFn:  countFn,
		cache:    make(map[string]*list.Element),
		lruList:  list.New(),
		maxCache: maxCache,
	}
}

// Count returns the token count for content, using contentHash as the
// cache key. The hash is supplied by the caller because the file
// access layer has already computed it for identity purposes.
func (c *Counter) Count(content, contentHash string) Result {
	if r, ok := c.getCached(contentHash); ok {
		return r
	}

	r := c.countUncached(content)
	c.addCached(contentHash, r)
	return r
}

func (c *Counter) countUncached(content string) Result {
	if c.countFn != nil {
		n, err := c.countFn(content)
		if err == nil {
			return Result{Tokens: n}
		}
		debug.LogBank("token counter failed (%v), falling back to estimate for %d bytes\n", err, len(content))
	}
	return Result{Tokens: EstimateTokens(content), Estimate: true}
}

func (c *Counter) getCached(key string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lruList.MoveToFront(elem)
		return elem.Value.(*cacheEntry).result, true
	}
	return Result{}, false
}

func (c *Counter) addCached(key string, r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lruList.MoveToFront(elem)
		elem.Value.(*cacheEntry).result = r
		return
	}

	if c.lruList.Len() >= c.maxCache {
		oldest := c.lruList.Back()
		if oldest != nil {
			delete(c.cache, oldest.Value.(*cacheEntry).key)
			c.lruList.Remove(oldest)
		}
	}

	elem := c.lruList.PushFront(&cacheEntry{key: key, result: r})
	c.cache[key] = elem
}

// Invalidate clears all cached counts.
func (c *Counter) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]*list.Element)
	c.lruList.Init()
}

// CacheLen returns the number of cached counts.
func (c *Counter) CacheLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// EstimateTokens provides a rough count without a tokenizer. Markdown
// documentation is mostly prose, so a word-weighted blend tracks real
// tokenizers better than a flat chars/4 rule; fenced code blocks pull
// the estimate toward a denser chars-per-token ratio.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}

	codeChars := 0
	proseChars := 0
	inFence := false
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			codeChars += len(line) + 1
			continue
		}
		if inFence {
			codeChars += len(line) + 1
		} else {
			proseChars += len(line) + 1
		}
	}

	// Code tokenizes denser than prose: identifiers split into
	// subwords and punctuation tokenizes separately.
	codeTokens := int(float64(codeChars) / 3.2)

	words := len(strings.Fields(text))
	byWords := int(float64(words) * 1.3)
	byChars := proseChars / 4
	proseTokens := (byWords*3 + byChars) / 4

	if codeChars == 0 {
		return proseTokens
	}
	if proseChars == 0 {
		return codeTokens
	}
	// Scale the word-based prose estimate down to the prose share.
	proseTokens = proseTokens * proseChars / (proseChars + codeChars)
	return proseTokens + codeTokens
}
