package university_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/leonardcser/campus-mcp/internal/cache"
	"github.com/leonardcser/campus-mcp/internal/university"
)

var sample = []university.University{
	{Name: "MIT", Country: "United States", AlphaTwoCode: "US", Domains: []string{"mit.edu"}, WebPages: []string{"https://web.mit.edu/"}},
	{Name: "University of Oxford", Country: "United Kingdom", AlphaTwoCode: "GB", Domains: []string{"ox.ac.uk"}, WebPages: []string{"https://www.ox.ac.uk/"}},
	{Name: "Universidad de Chile", Country: "Chile", AlphaTwoCode: "CL"},
	{Name: "McGill University", Country: "Canada", StateProvince: "Quebec", AlphaTwoCode: "CA"},
}

// fakeSource counts fetches and can hold them until release is closed.
type fakeSource struct {
	mu      sync.Mutex
	calls   int
	data    []university.University
	err     error
	started chan struct{}
	release chan struct{}
}

func newFakeSource(data []university.University) *fakeSource {
	return &fakeSource{data: data, started: make(chan struct{}, 64)}
}

func (f *fakeSource) FetchUniversities(ctx context.Context) ([]university.University, error) {
	f.mu.Lock()
	f.calls++
	data, err, release := f.data, f.err, f.release
	f.mu.Unlock()
	f.started <- struct{}{}
	if release != nil {
		<-release
	}
	return data, err
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeSource) set(data []university.University, err error) {
	f.mu.Lock()
	f.data, f.err = data, err
	f.mu.Unlock()
}

// memKV is an in-memory cache.KV that can be told to fail writes.
type memKV struct {
	mu     sync.Mutex
	m      map[string][]byte
	putErr error
}

func newMemKV() *memKV { return &memKV{m: map[string][]byte{}} }

func (k *memKV) Get(key string) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.m[key]
	if !ok {
		return nil, cache.ErrNotFound
	}
	return v, nil
}

func (k *memKV) Put(key string, value []byte, _ time.Duration) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.putErr != nil {
		return k.putErr
	}
	k.m[key] = value
	return nil
}

func (k *memKV) Delete(key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.m, key)
	return nil
}

func envelopeJSON(version string, at time.Time) []byte {
	return []byte(fmt.Sprintf(`{"version":%q,"timestamp":%d,"data":[{"name":"Cached University","country":"Nowhere"}]}`, version, at.UnixMilli()))
}

func TestSearch_ShortQueryDoesNotLoad(t *testing.T) {
	src := newFakeSource(sample)
	svc := university.New(src, newMemKV(), university.Options{})

	for _, q := range []string{"", "m", "é"} {
		got, err := svc.Search(context.Background(), q)
		require.NoError(t, err)
		require.Empty(t, got)
	}
	require.Equal(t, 0, src.Calls())
	require.Equal(t, 0, svc.LoadedCount())
	require.False(t, svc.IsLoading())
}

func TestSearch_MatchesNameOrCountry(t *testing.T) {
	svc := university.New(newFakeSource(sample), newMemKV(), university.Options{})
	ctx := context.Background()

	got, err := svc.Search(ctx, "mit")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "MIT", got[0].Name)

	got, err = svc.Search(ctx, "xyz123")
	require.NoError(t, err)
	require.Empty(t, got)

	got, err = svc.Search(ctx, "UNITED")
	require.NoError(t, err)
	require.Equal(t, []string{"MIT", "University of Oxford"}, names(got))

	got, err = svc.Search(ctx, "  chile ")
	require.NoError(t, err)
	require.Equal(t, []string{"Universidad de Chile"}, names(got))
}

func TestSearch_ResultsAreBoundedAndMatch(t *testing.T) {
	var data []university.University
	for i := 0; i < 30; i++ {
		data = append(data, university.University{Name: fmt.Sprintf("State University %02d", i), Country: "Testland"})
	}
	data = append(data, sample...)
	svc := university.New(newFakeSource(data), newMemKV(), university.Options{})

	got, err := svc.Search(context.Background(), "university")
	require.NoError(t, err)
	require.Len(t, got, 8)
	for i, u := range got {
		require.Equal(t, fmt.Sprintf("State University %02d", i), u.Name)
	}

	for _, q := range []string{"un", "land", "Of", "ca", "zz"} {
		got, err := svc.Search(context.Background(), q)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(got), 8)
		for _, u := range got {
			lq := strings.ToLower(q)
			assert.True(t,
				strings.Contains(strings.ToLower(u.Name), lq) || strings.Contains(strings.ToLower(u.Country), lq),
				"%q does not match %q", u.Name, q)
		}
	}
}

func TestSearch_CustomLimits(t *testing.T) {
	svc := university.New(newFakeSource(sample), newMemKV(), university.Options{MaxResults: 1, MinQueryLength: 4})

	got, err := svc.Search(context.Background(), "uni")
	require.NoError(t, err)
	require.Empty(t, got)

	got, err = svc.Search(context.Background(), "univ")
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestAll_SingleFlight(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := newFakeSource(sample)
	src.release = make(chan struct{})
	svc := university.New(src, newMemKV(), university.Options{})

	const callers = 16
	var wg sync.WaitGroup
	results := make([][]university.University, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.All(context.Background())
		}(i)
	}

	<-src.started
	require.True(t, svc.IsLoading())
	require.Equal(t, 0, svc.LoadedCount())
	close(src.release)
	wg.Wait()

	require.Equal(t, 1, src.Calls())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Len(t, results[i], len(sample))
	}
	require.False(t, svc.IsLoading())
	require.Equal(t, len(sample), svc.LoadedCount())
}

func TestAll_FreshInstanceUsesDurableCache(t *testing.T) {
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.bbolt"), cache.Options{})
	require.NoError(t, err)
	defer store.Close()

	first := newFakeSource(sample)
	_, err = university.New(first, store, university.Options{}).All(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, first.Calls())

	second := newFakeSource(nil)
	svc := university.New(second, store, university.Options{})
	got, err := svc.All(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, second.Calls())
	require.Equal(t, sample, got)
}

func TestClearCache_Refetches(t *testing.T) {
	kv := newMemKV()
	src := newFakeSource(sample)
	svc := university.New(src, kv, university.Options{})

	_, err := svc.All(context.Background())
	require.NoError(t, err)
	require.Equal(t, len(sample), svc.LoadedCount())

	require.NoError(t, svc.ClearCache())
	require.Equal(t, 0, svc.LoadedCount())
	_, err = kv.Get(university.DefaultKey)
	require.ErrorIs(t, err, cache.ErrNotFound)

	_, err = svc.All(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, src.Calls())
}

func TestAll_ExpiredEntryIgnored(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	kv := newMemKV()
	require.NoError(t, kv.Put(university.DefaultKey, envelopeJSON("v1", now.Add(-25*time.Hour)), 0))

	src := newFakeSource(sample)
	svc := university.New(src, kv, university.Options{Now: func() time.Time { return now }})
	got, err := svc.All(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, src.Calls())
	require.Equal(t, sample, got)

	b, err := kv.Get(university.DefaultKey)
	require.NoError(t, err)
	require.Contains(t, string(b), fmt.Sprintf(`"timestamp":%d`, now.UnixMilli()))
}

func TestAll_EntryWithinTTLUsed(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	kv := newMemKV()
	require.NoError(t, kv.Put(university.DefaultKey, envelopeJSON("v1", now.Add(-24*time.Hour)), 0))

	src := newFakeSource(sample)
	svc := university.New(src, kv, university.Options{Now: func() time.Time { return now }})
	got, err := svc.All(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, src.Calls())
	require.Equal(t, []string{"Cached University"}, names(got))
}

func TestAll_VersionMismatchRemoved(t *testing.T) {
	kv := newMemKV()
	require.NoError(t, kv.Put(university.DefaultKey, envelopeJSON("v0", time.Now()), 0))

	src := newFakeSource(nil)
	src.err = errors.New("offline")
	svc := university.New(src, kv, university.Options{})

	_, err := svc.All(context.Background())
	require.Error(t, err)
	require.Equal(t, 1, src.Calls())
	_, err = kv.Get(university.DefaultKey)
	require.ErrorIs(t, err, cache.ErrNotFound)
}

func TestAll_MalformedEntryDiscarded(t *testing.T) {
	for name, raw := range map[string]string{
		"not json":     `{"version":`,
		"no data":      `{"version":"v1","timestamp":1}`,
		"bad record":   `{"version":"v1","timestamp":1,"data":[{"country":"X"}]}`,
		"not envelope": `[1,2,3]`,
	} {
		t.Run(name, func(t *testing.T) {
			kv := newMemKV()
			require.NoError(t, kv.Put(university.DefaultKey, []byte(raw), 0))
			src := newFakeSource(sample)
			svc := university.New(src, kv, university.Options{})

			got, err := svc.All(context.Background())
			require.NoError(t, err)
			require.Equal(t, 1, src.Calls())
			require.Equal(t, sample, got)
		})
	}
}

func TestAll_NetworkFailureIsRetryable(t *testing.T) {
	boom := errors.New("connection refused")
	src := newFakeSource(nil)
	src.err = boom
	svc := university.New(src, newMemKV(), university.Options{})

	_, err := svc.All(context.Background())
	require.ErrorIs(t, err, boom)
	require.Equal(t, 0, svc.LoadedCount())
	require.False(t, svc.IsLoading())

	_, err = svc.Search(context.Background(), "mit")
	require.ErrorIs(t, err, boom)
	require.Equal(t, 2, src.Calls())

	src.set(sample, nil)
	got, err := svc.Search(context.Background(), "mit")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 3, src.Calls())
}

func TestAll_CacheWriteFailureDoesNotFailLoad(t *testing.T) {
	kv := newMemKV()
	kv.putErr = errors.New("quota exceeded")
	svc := university.New(newFakeSource(sample), kv, university.Options{})

	got, err := svc.All(context.Background())
	require.NoError(t, err)
	require.Equal(t, sample, got)
	require.Equal(t, len(sample), svc.LoadedCount())
}

func TestClearCache_DuringLoadDiscardsResult(t *testing.T) {
	defer goleak.VerifyNone(t)

	kv := newMemKV()
	src := newFakeSource(sample)
	src.release = make(chan struct{})
	svc := university.New(src, kv, university.Options{})

	done := make(chan []university.University, 1)
	go func() {
		got, err := svc.All(context.Background())
		assert.NoError(t, err)
		done <- got
	}()

	<-src.started
	require.NoError(t, svc.ClearCache())
	close(src.release)

	// The waiting caller still receives the data it asked for.
	require.Len(t, <-done, len(sample))
	require.Equal(t, 0, svc.LoadedCount())
	_, err := kv.Get(university.DefaultKey)
	require.ErrorIs(t, err, cache.ErrNotFound)

	_, err = svc.All(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, src.Calls())
	require.Equal(t, len(sample), svc.LoadedCount())
}

func TestAll_CallerCancelDoesNotAbortLoad(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := newFakeSource(sample)
	src.release = make(chan struct{})
	svc := university.New(src, newMemKV(), university.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := svc.All(ctx)
		errc <- err
	}()
	<-src.started
	cancel()
	require.ErrorIs(t, <-errc, context.Canceled)

	close(src.release)
	require.Eventually(t, func() bool { return svc.LoadedCount() == len(sample) }, time.Second, 5*time.Millisecond)
	require.False(t, svc.IsLoading())
	require.Equal(t, 1, src.Calls())
}

func TestByName(t *testing.T) {
	svc := university.New(newFakeSource(sample), newMemKV(), university.Options{})

	u, ok, err := svc.ByName(context.Background(), " university of OXFORD ")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "GB", u.AlphaTwoCode)

	_, ok, err = svc.ByName(context.Background(), "Oxford")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPreload(t *testing.T) {
	src := newFakeSource(sample)
	svc := university.New(src, newMemKV(), university.Options{})
	require.NoError(t, svc.Preload(context.Background()))
	require.Equal(t, len(sample), svc.LoadedCount())

	_, err := svc.Search(context.Background(), "mcgill")
	require.NoError(t, err)
	require.Equal(t, 1, src.Calls())
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := university.NewMetrics(reg)
	kv := newMemKV()

	svc := university.New(newFakeSource(sample), kv, university.Options{Metrics: m})
	_, err := svc.Search(context.Background(), "mit")
	require.NoError(t, err)

	fresh := university.New(newFakeSource(nil), kv, university.Options{Metrics: m})
	_, err = fresh.All(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1.0, testutil.ToFloat64(m.Loads().WithLabelValues("network", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Loads().WithLabelValues("cache", "ok")))
	require.Equal(t, float64(len(sample)), testutil.ToFloat64(m.Records()))

	require.NoError(t, svc.ClearCache())
	require.Equal(t, 0.0, testutil.ToFloat64(m.Records()))

	n, err := testutil.GatherAndCount(reg, "campus_university_searches_total")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func names(list []university.University) []string {
	out := make([]string, 0, len(list))
	for _, u := range list {
		out = append(out, u.Name)
	}
	return out
}
