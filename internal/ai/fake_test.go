package ai

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"sync/atomic"
)

type fakeStream struct {
	chunks []string
	err    error
	closed bool
}

func (s *fakeStream) Recv() (string, error) {
	if len(s.chunks) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

type fakeEngine struct {
	mu        sync.Mutex
	model     string
	progress  ProgressFunc
	reloadErr error
	unloaded  int
	requests  []ChatRequest
	stream    *fakeStream
	newStream func() Stream
}

func (e *fakeEngine) SetProgressCallback(fn ProgressFunc) { e.progress = fn }

func (e *fakeEngine) Reload(_ context.Context, modelID string) error {
	for i, text := range []string{"Fetching param cache", "Loading shards", "Finish loading"} {
		if e.progress != nil {
			e.progress(Progress{Text: text, Value: float64(i+1) / 3})
		}
	}
	if e.reloadErr != nil {
		return e.reloadErr
	}
	e.model = modelID
	return nil
}

func (e *fakeEngine) ChatStream(_ context.Context, req ChatRequest) (Stream, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests = append(e.requests, req)
	if e.newStream != nil {
		return e.newStream(), nil
	}
	if e.stream == nil {
		return &fakeStream{}, nil
	}
	return e.stream, nil
}

func (e *fakeEngine) Unload(context.Context) error {
	e.unloaded++
	return nil
}

type fakeCache struct {
	keys   map[string]bool
	hasErr error
}

func (c *fakeCache) Keys(context.Context) ([]string, error) {
	out := make([]string, 0, len(c.keys))
	for k := range c.keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	delete(c.keys, key)
	return nil
}

func (c *fakeCache) Has(_ context.Context, id string) (bool, error) {
	if c.hasErr != nil {
		return false, c.hasErr
	}
	for k := range c.keys {
		if k == id {
			return true, nil
		}
	}
	return false, nil
}

type fakeRuntime struct {
	probeErr error
	engines  []*fakeEngine
	next     func() *fakeEngine
	cache    *fakeCache
}

func (r *fakeRuntime) Probe(context.Context) error { return r.probeErr }

func (r *fakeRuntime) NewEngine() Engine {
	e := &fakeEngine{}
	if r.next != nil {
		e = r.next()
	}
	r.engines = append(r.engines, e)
	return e
}

func (r *fakeRuntime) Cache() Cache {
	if r.cache == nil {
		return nil
	}
	return r.cache
}

type memPrefs struct {
	values map[string]string
	err    error
}

func (p *memPrefs) String(_ context.Context, key, def string) string {
	if v, ok := p.values[key]; ok {
		return v
	}
	return def
}

func (p *memPrefs) Set(_ context.Context, key string, v any) error {
	if p.err != nil {
		return p.err
	}
	if p.values == nil {
		p.values = map[string]string{}
	}
	p.values[key] = v.(string)
	return nil
}

var errBoom = errors.New("boom")

// gateStream blocks its first Recv until release is closed and tracks how
// many streams are inside Recv at once.
type gateStream struct {
	active, peak *atomic.Int32
	started      chan<- struct{}
	release      <-chan struct{}
	done         bool
}

func (s *gateStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	n := s.active.Add(1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	s.started <- struct{}{}
	<-s.release
	s.active.Add(-1)
	s.done = true
	return "ok", nil
}

func (s *gateStream) Close() error { return nil }
