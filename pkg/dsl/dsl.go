// Package dsl ties the rule language together: it parses rule text,
// caches the resulting trees and evaluates them.
//
//	engine := dsl.NewEngine(dsl.DefaultEngineConfig(), logger)
//	result, err := engine.Evaluate(ctx, "IF PSR < 3 THEN approve()", eval.Context{"PSR": 2})
//
// Subpackages hold the pieces: ast (syntax tree), lexer, parser, eval and
// errors.
package dsl

import (
	"container/list"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"mercator-hq/rulebook/pkg/config"
	"mercator-hq/rulebook/pkg/dsl/ast"
	"mercator-hq/rulebook/pkg/dsl/eval"
	"mercator-hq/rulebook/pkg/dsl/parser"
)

// EngineConfig configures an Engine.
type EngineConfig struct {
	// MaxRuleLength is the maximum rule text length in bytes.
	// Default: 64 KiB.
	MaxRuleLength int

	// MaxDepth is the maximum group nesting depth.
	// Default: 32.
	MaxDepth int

	// EnableTrace records evaluation steps in every result.
	// Default: false.
	EnableTrace bool

	// CacheSize is the number of parsed rules kept in memory. Zero disables
	// the cache.
	// Default: 1024.
	CacheSize int
}

// DefaultEngineConfig returns the default engine configuration.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		MaxRuleLength: parser.DefaultMaxLength,
		MaxDepth:      parser.DefaultMaxDepth,
		CacheSize:     1024,
	}
}

// EngineConfigFrom builds an engine configuration from the engine section of
// the application configuration.
func EngineConfigFrom(cfg *config.EngineConfig) *EngineConfig {
	return &EngineConfig{
		MaxRuleLength: cfg.MaxRuleLength,
		MaxDepth:      cfg.MaxDepth,
		EnableTrace:   cfg.Trace,
		CacheSize:     cfg.CacheSize,
	}
}

// Validate validates the engine configuration.
func (c *EngineConfig) Validate() error {
	if c.MaxRuleLength < 0 {
		return fmt.Errorf("max rule length must not be negative")
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max depth must not be negative")
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache size must not be negative")
	}
	return nil
}

// WithTrace enables or disables evaluation tracing.
func (c *EngineConfig) WithTrace(enabled bool) *EngineConfig {
	c.EnableTrace = enabled
	return c
}

// WithCacheSize sets the parse cache size.
func (c *EngineConfig) WithCacheSize(n int) *EngineConfig {
	c.CacheSize = n
	return c
}

// CacheObserver is notified of parse cache activity.
type CacheObserver interface {
	CacheLookup(hit bool)
	CacheSize(entries int)
}

// Engine parses and evaluates rules. It is safe for concurrent use.
type Engine struct {
	parser    *parser.Parser
	evaluator *eval.Evaluator
	cache     *treeCache
	observer  CacheObserver
}

// NewEngine creates an engine. A nil config uses DefaultEngineConfig.
func NewEngine(config *EngineConfig, logger *slog.Logger) *Engine {
	if config == nil {
		config = DefaultEngineConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		parser:    parser.NewParser().WithMaxLength(config.MaxRuleLength).WithMaxDepth(config.MaxDepth),
		evaluator: eval.NewEvaluator(logger).WithTrace(config.EnableTrace),
		cache:     newTreeCache(config.CacheSize),
	}
}

// WithCacheObserver sets the observer notified of parse cache hits, misses
// and size changes. It must be called before the engine is shared.
func (e *Engine) WithCacheObserver(o CacheObserver) *Engine {
	e.observer = o
	return e
}

// Parse parses text, returning a cached tree when text was seen before.
// Syntax errors are not cached.
func (e *Engine) Parse(text string) (*ast.Conditional, error) {
	tree, ok := e.cache.get(text)
	if e.observer != nil && e.cache.size > 0 {
		e.observer.CacheLookup(ok)
	}
	if ok {
		return tree, nil
	}

	tree, err := e.parser.Parse(text)
	if err != nil {
		return nil, err
	}
	if n := e.cache.put(text, tree); e.observer != nil && n >= 0 {
		e.observer.CacheSize(n)
	}
	return tree, nil
}

// Evaluate parses text and evaluates it against vars.
func (e *Engine) Evaluate(ctx context.Context, text string, vars eval.Context) (*eval.Result, error) {
	tree, err := e.Parse(text)
	if err != nil {
		return nil, err
	}
	return e.evaluator.Evaluate(ctx, tree, vars)
}

// EvaluateTree evaluates an already parsed tree.
func (e *Engine) EvaluateTree(ctx context.Context, tree *ast.Conditional, vars eval.Context) (*eval.Result, error) {
	return e.evaluator.Evaluate(ctx, tree, vars)
}

// EvaluateText parses and evaluates text with default settings.
func EvaluateText(ctx context.Context, text string, vars eval.Context) (*eval.Result, error) {
	tree, err := parser.Parse(text)
	if err != nil {
		return nil, err
	}
	return eval.NewEvaluator(nil).Evaluate(ctx, tree, vars)
}

// treeCache is a fixed-size LRU of parsed trees keyed by rule text.
type treeCache struct {
	mu      sync.Mutex
	size    int
	order   *list.List
	entries map[string]*list.Element
}

type cacheEntry struct {
	text string
	tree *ast.Conditional
}

func newTreeCache(size int) *treeCache {
	return &treeCache{
		size:    size,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

func (c *treeCache) get(text string) (*ast.Conditional, bool) {
	if c.size <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[text]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).tree, true
}

// put stores tree and returns the number of cached entries, or -1 when the
// cache is disabled.
func (c *treeCache) put(text string, tree *ast.Conditional) int {
	if c.size <= 0 {
		return -1
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[text]; ok {
		c.order.MoveToFront(el)
		return c.order.Len()
	}
	c.entries[text] = c.order.PushFront(&cacheEntry{text: text, tree: tree})

	for c.order.Len() > c.size {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).text)
	}
	return c.order.Len()
}

func (c *treeCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
