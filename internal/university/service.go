package university

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"github.com/leonardcser/campus-mcp/internal/cache"
	"github.com/leonardcser/campus-mcp/internal/logger"
)

const (
	DefaultKey            = "campus_connect_universities"
	DefaultVersion        = "v1"
	DefaultTTL            = 24 * time.Hour
	DefaultMaxResults     = 8
	DefaultMinQueryLength = 2
)

type Options struct {
	// Key is the durable cache key holding the envelope.
	Key string
	// Version must match the stored envelope exactly for it to be used.
	Version string
	// TTL bounds the age of a stored envelope.
	TTL            time.Duration
	MaxResults     int
	MinQueryLength int
	Now            func() time.Time
	Metrics        *Metrics
}

func (o Options) withDefaults() Options {
	if o.Key == "" {
		o.Key = DefaultKey
	}
	if o.Version == "" {
		o.Version = DefaultVersion
	}
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.MaxResults <= 0 {
		o.MaxResults = DefaultMaxResults
	}
	if o.MinQueryLength <= 0 {
		o.MinQueryLength = DefaultMinQueryLength
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Metrics == nil {
		o.Metrics = NewMetrics(nil)
	}
	return o
}

// Service is the university lookup cache. The dataset is loaded at most once
// at a time; concurrent callers share the pending load.
type Service struct {
	source Source
	store  cache.KV
	opts   Options

	group    singleflight.Group
	inflight atomic.Int32

	mu           sync.RWMutex
	universities []University
	generation   uint64
}

// New builds a Service reading through store and falling back to source.
// Zero fields in opts take the Default* values.
func New(source Source, store cache.KV, opts Options) *Service {
	return &Service{source: source, store: store, opts: opts.withDefaults()}
}

// Preload starts loading the dataset so the first search does not pay for it.
func (s *Service) Preload(ctx context.Context) error {
	_, err := s.ensureLoaded(ctx)
	if err != nil {
		logger.Warnf("Preloading universities failed: %v", err)
	}
	return err
}

// Search returns up to MaxResults records whose name or country contains
// query, case-insensitively, in dataset order. Queries shorter than
// MinQueryLength return an empty result without loading anything.
func (s *Service) Search(ctx context.Context, query string) ([]University, error) {
	if utf8.RuneCountInString(query) < s.opts.MinQueryLength {
		return []University{}, nil
	}
	all, err := s.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	s.opts.Metrics.searches.Inc()

	q := strings.TrimSpace(strings.ToLower(query))
	out := make([]University, 0, s.opts.MaxResults)
	for _, u := range all {
		if strings.Contains(strings.ToLower(u.Name), q) || strings.Contains(strings.ToLower(u.Country), q) {
			out = append(out, u)
			if len(out) == s.opts.MaxResults {
				break
			}
		}
	}
	return out, nil
}

// All returns the loaded dataset. The slice is shared; callers must not modify it.
func (s *Service) All(ctx context.Context) ([]University, error) {
	return s.ensureLoaded(ctx)
}

// ByName returns the first record whose name equals name, ignoring case.
func (s *Service) ByName(ctx context.Context, name string) (University, bool, error) {
	all, err := s.ensureLoaded(ctx)
	if err != nil {
		return University{}, false, err
	}
	name = strings.TrimSpace(name)
	for _, u := range all {
		if strings.EqualFold(u.Name, name) {
			return u, true, nil
		}
	}
	return University{}, false, nil
}

// IsLoading reports whether a load is in flight.
func (s *Service) IsLoading() bool { return s.inflight.Load() > 0 }

// LoadedCount is the number of records in memory.
func (s *Service) LoadedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.universities)
}

// ClearCache drops the durable entry and the in-memory copy. A load already
// in flight finishes for its callers but its result is not kept.
func (s *Service) ClearCache() error {
	s.mu.Lock()
	s.universities = nil
	s.generation++
	s.mu.Unlock()
	s.group.Forget(s.opts.Key)
	s.opts.Metrics.records.Set(0)

	if err := s.store.Delete(s.opts.Key); err != nil {
		return fmt.Errorf("clear university cache: %w", err)
	}
	logger.Infof("University cache cleared")
	return nil
}

func (s *Service) ensureLoaded(ctx context.Context) ([]University, error) {
	s.mu.RLock()
	list := s.universities
	s.mu.RUnlock()
	if len(list) > 0 {
		return list, nil
	}

	// The load outlives any single caller; ctx only bounds this caller's wait.
	loadCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(s.opts.Key, func() (any, error) {
		return s.load(loadCtx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]University), nil
	}
}

func (s *Service) load(ctx context.Context) ([]University, error) {
	s.mu.RLock()
	list, gen := s.universities, s.generation
	s.mu.RUnlock()
	if len(list) > 0 {
		return list, nil
	}

	s.inflight.Add(1)
	defer s.inflight.Add(-1)

	if cached, ok := s.readCache(); ok {
		s.opts.Metrics.loads.WithLabelValues("cache", "ok").Inc()
		logger.Infof("Loaded %d universities from cache", len(cached))
		s.commit(gen, cached)
		return cached, nil
	}

	logger.Infof("Loading universities from network")
	start := time.Now()
	fetched, err := s.source.FetchUniversities(ctx)
	s.opts.Metrics.fetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.opts.Metrics.loads.WithLabelValues("network", "error").Inc()
		logger.Errorf("Loading universities failed: %v", err)
		return nil, fmt.Errorf("load universities: %w", err)
	}
	s.opts.Metrics.loads.WithLabelValues("network", "ok").Inc()

	if s.currentGeneration() == gen {
		s.writeCache(fetched)
	}
	s.commit(gen, fetched)
	logger.Infof("Loaded %d universities and cached them", len(fetched))
	return fetched, nil
}

// readCache returns the stored dataset when the envelope is valid, and
// deletes the entry when it is not.
func (s *Service) readCache() ([]University, bool) {
	b, err := s.store.Get(s.opts.Key)
	if err != nil {
		if !cache.IsMiss(err) {
			logger.Warnf("Cache read failed, loading from network: %v", err)
		}
		if errors.Is(err, cache.ErrExpired) || errors.Is(err, cache.ErrCorrupt) {
			s.discard("unreadable")
		}
		return nil, false
	}
	env, err := decodeEnvelope(b)
	switch {
	case err != nil:
		logger.Warnf("Cache parsing failed: %v", err)
		s.discard("malformed")
		return nil, false
	case env.Version != s.opts.Version:
		s.discard("version " + env.Version)
		return nil, false
	case !env.fresh(s.opts.Now(), s.opts.TTL):
		s.discard("expired")
		return nil, false
	}
	return env.Data, true
}

func (s *Service) discard(reason string) {
	logger.Debugf("Discarding cached universities (%s)", reason)
	if err := s.store.Delete(s.opts.Key); err != nil {
		logger.Warnf("Failed to delete cached universities: %v", err)
	}
}

func (s *Service) writeCache(list []University) {
	b, err := encodeEnvelope(s.opts.Version, s.opts.Now(), list)
	if err != nil {
		logger.Warnf("Failed to encode universities for cache: %v", err)
		return
	}
	if err := s.store.Put(s.opts.Key, b, s.opts.TTL); err != nil {
		logger.Warnf("Failed to save universities to cache: %v", err)
	}
}

// commit publishes list unless ClearCache ran since the load started.
func (s *Service) commit(gen uint64, list []University) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		logger.Debugf("Dropping stale university load")
		return
	}
	s.universities = list
	s.opts.Metrics.records.Set(float64(len(list)))
}

func (s *Service) currentGeneration() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}
