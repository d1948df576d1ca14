package ai

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leapstack-labs/pith/internal/prefs"
	"github.com/leapstack-labs/pith/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	llama3B = "Llama-3.2-3B-Instruct-q4f32_1-MLC"
	llama1B = "Llama-3.2-1B-Instruct-q4f32_1-MLC"
	phi     = "Phi-3.5-mini-instruct-q4f16_1-MLC"
	mistral = "Mistral-7B-Instruct-v0.3-q4f16_1-MLC"
)

func newManager(t *testing.T, rt Runtime, p PrefStore) *Manager {
	t.Helper()
	return NewManager(context.Background(), Config{Runtime: rt, Prefs: p, Logger: testutil.NewTestLogger(t)})
}

func TestCatalog(t *testing.T) {
	require.Len(t, Models, 6)
	assert.Equal(t, llama3B, DefaultModel())

	d, ok := Lookup(mistral)
	require.True(t, ok)
	assert.Equal(t, "Mistral 7B", d.Name)
	assert.Equal(t, "Slow", d.Speed)
	assert.Equal(t, "Best", d.Quality)

	_, ok = Lookup("gpt-4o")
	assert.False(t, ok)
}

func TestNewManager_CurrentModel(t *testing.T) {
	tests := []struct {
		name  string
		prefs PrefStore
		want  string
	}{
		{"no store", nil, llama3B},
		{"nothing saved", &memPrefs{}, llama3B},
		{"valid saved model", &memPrefs{values: map[string]string{prefs.KeyLastModel: phi}}, phi},
		{"unknown saved model", &memPrefs{values: map[string]string{prefs.KeyLastModel: "gpt-4o"}}, llama3B},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newManager(t, &fakeRuntime{}, tt.prefs)
			assert.Equal(t, tt.want, m.CurrentModel())
			assert.Equal(t, StateIdle, m.Status().State)
		})
	}
}

func TestSetModel(t *testing.T) {
	p := &memPrefs{}
	m := newManager(t, &fakeRuntime{}, p)

	var switched []string
	m.OnModelChange(func(old, new string) { switched = append(switched, old+"->"+new) })

	require.NoError(t, m.SetModel(context.Background(), llama1B))
	assert.Equal(t, llama1B, m.CurrentModel())
	assert.Equal(t, llama1B, p.values[prefs.KeyLastModel])
	assert.Equal(t, []string{llama3B + "->" + llama1B}, switched)
	assert.Empty(t, m.LoadedModel(), "SetModel never loads")

	var unknown *UnknownModelError
	assert.ErrorAs(t, m.SetModel(context.Background(), "gpt-4o"), &unknown)
}

func TestSetModel_PersistFailureIsNotFatal(t *testing.T) {
	m := newManager(t, &fakeRuntime{}, &memPrefs{err: errBoom})
	require.NoError(t, m.SetModel(context.Background(), phi))
	assert.Equal(t, phi, m.CurrentModel())
}

func TestSetModel_ReadyDropsToIdle(t *testing.T) {
	m := newManager(t, &fakeRuntime{}, nil)
	_, err := m.Init(context.Background(), nil, "")
	require.NoError(t, err)
	require.Equal(t, StateReady, m.Status().State)

	require.NoError(t, m.SetModel(context.Background(), llama1B))
	assert.Equal(t, StateIdle, m.Status().State)
	assert.Equal(t, llama3B, m.LoadedModel(), "engine stays loaded until the next Init")
}

func TestCheckCached(t *testing.T) {
	rt := &fakeRuntime{cache: &fakeCache{keys: map[string]bool{phi: true}}}
	m := newManager(t, rt, nil)

	assert.True(t, m.CheckCached(context.Background(), phi))
	assert.False(t, m.CheckCached(context.Background(), llama1B))
	assert.False(t, m.CheckCached(context.Background(), ""))

	rt.cache.hasErr = errBoom
	assert.False(t, m.CheckCached(context.Background(), phi), "probe failures read as not cached")

	assert.False(t, newManager(t, &fakeRuntime{}, nil).CheckCached(context.Background(), phi))
}

func TestInit(t *testing.T) {
	rt := &fakeRuntime{}
	m := newManager(t, rt, nil)

	var reports []Progress
	eng, err := m.Init(context.Background(), func(p Progress) { reports = append(reports, p) }, "")
	require.NoError(t, err)
	require.NotNil(t, eng)

	assert.Len(t, reports, 3)
	assert.Equal(t, "Fetching param cache", reports[0].Text)
	assert.Equal(t, StateReady, m.Status().State)
	assert.Equal(t, llama3B, m.LoadedModel())

	again, err := m.Init(context.Background(), nil, llama3B)
	require.NoError(t, err)
	assert.Same(t, eng, again)
	assert.Len(t, rt.engines, 1, "same model is idempotent")
}

func TestInit_SwitchUnloadsPrevious(t *testing.T) {
	rt := &fakeRuntime{}
	m := newManager(t, rt, nil)

	_, err := m.Init(context.Background(), nil, llama3B)
	require.NoError(t, err)
	_, err = m.Init(context.Background(), nil, phi)
	require.NoError(t, err)

	require.Len(t, rt.engines, 2)
	assert.Equal(t, 1, rt.engines[0].unloaded)
	assert.Equal(t, phi, m.CurrentModel())
	assert.Equal(t, phi, m.LoadedModel())
}

func TestInit_UnsupportedPlatform(t *testing.T) {
	rt := &fakeRuntime{probeErr: &UnsupportedPlatformError{Reason: "no GPU"}}
	m := newManager(t, rt, nil)

	_, err := m.Init(context.Background(), nil, phi)
	var perr *UnsupportedPlatformError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, StateError, m.Status().State)
	assert.Empty(t, rt.engines, "no engine is built when the probe fails")
	assert.Equal(t, llama3B, m.CurrentModel(), "current model only changes on success")
}

func TestInit_ReloadFailure(t *testing.T) {
	rt := &fakeRuntime{next: func() *fakeEngine { return &fakeEngine{reloadErr: errBoom} }}
	m := newManager(t, rt, nil)

	_, err := m.Init(context.Background(), nil, phi)
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, StateError, m.Status().State)
	assert.Empty(t, m.LoadedModel())
	assert.Equal(t, llama3B, m.CurrentModel())
}

func TestGenerate(t *testing.T) {
	stream := &fakeStream{chunks: []string{"The ", "answer ", "is 42."}}
	rt := &fakeRuntime{next: func() *fakeEngine { return &fakeEngine{stream: stream} }}
	m := newManager(t, rt, nil)
	_, err := m.Init(context.Background(), nil, "")
	require.NoError(t, err)

	var states []State
	m.OnStatus(func(s Status) { states = append(states, s.State) })

	var updates []string
	text, err := m.Generate(context.Background(), "what is it?", "Table: t\nColumns: a (INTEGER)\n\n",
		func(s string) { updates = append(updates, s) })
	require.NoError(t, err)

	assert.Equal(t, "The answer is 42.", text)
	assert.Equal(t, []string{"The ", "The answer ", "The answer is 42."}, updates)
	assert.True(t, stream.closed)
	assert.Equal(t, []State{StateGenerating, StateReady}, states)

	req := rt.engines[0].requests[0]
	require.Len(t, req.Messages, 2)
	assert.Equal(t, RoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "You are Pith AI")
	assert.Contains(t, req.Messages[0].Content, "Available Schema:\nTable: t\nColumns: a (INTEGER)")
	assert.Equal(t, "what is it?", req.Messages[1].Content)
	assert.InDelta(t, 0.7, req.Temperature, 1e-6)
}

func TestGenerate_NotInitialized(t *testing.T) {
	m := newManager(t, &fakeRuntime{}, nil)
	_, err := m.Generate(context.Background(), "hi", "", nil)
	assert.ErrorIs(t, err, ErrEngineNotInitialized)

	var typed *EngineNotInitializedError
	assert.ErrorAs(t, err, &typed)
}

func TestGenerate_StreamError(t *testing.T) {
	stream := &fakeStream{chunks: []string{"partial"}, err: errBoom}
	rt := &fakeRuntime{next: func() *fakeEngine { return &fakeEngine{stream: stream} }}
	m := newManager(t, rt, nil)
	_, err := m.Init(context.Background(), nil, "")
	require.NoError(t, err)

	text, err := m.Generate(context.Background(), "hi", "", nil)
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, "partial", text)
	assert.Equal(t, StateError, m.Status().State)
}

func TestInit_RecoversAfterGenerationFailure(t *testing.T) {
	stream := &fakeStream{err: context.Canceled}
	rt := &fakeRuntime{next: func() *fakeEngine { return &fakeEngine{stream: stream} }}
	m := newManager(t, rt, nil)
	eng, err := m.Init(context.Background(), nil, "")
	require.NoError(t, err)

	_, err = m.Generate(context.Background(), "hi", "", nil)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, StateError, m.Status().State)

	again, err := m.Init(context.Background(), nil, llama3B)
	require.NoError(t, err)
	assert.Same(t, eng, again)
	assert.Equal(t, StateReady, m.Status().State)
	assert.Equal(t, llama3B, m.Status().Model)
	assert.Len(t, rt.engines, 1, "the loaded engine is reused")
}

func TestGenerate_CanceledContextWhileWaiting(t *testing.T) {
	m := newManager(t, &fakeRuntime{}, nil)
	_, err := m.Init(context.Background(), nil, "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Generate(ctx, "hi", "", nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateReady, m.Status().State)
}

func TestGenerate_Sequential(t *testing.T) {
	var active, peak atomic.Int32
	started := make(chan struct{}, 2)
	release := make(chan struct{})
	gate := func() Stream {
		return &gateStream{active: &active, peak: &peak, started: started, release: release}
	}
	rt := &fakeRuntime{next: func() *fakeEngine { return &fakeEngine{newStream: gate} }}
	m := newManager(t, rt, nil)
	_, err := m.Init(context.Background(), nil, "")
	require.NoError(t, err)
	eng := rt.engines[0]

	var wg sync.WaitGroup
	texts := make([]string, 2)
	for i := range texts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			text, err := m.Generate(context.Background(), "q", "", nil)
			assert.NoError(t, err)
			texts[i] = text
		}()
	}
	<-started

	// A load for another model waits for the stream instead of unloading it.
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := m.Init(context.Background(), nil, phi)
		assert.NoError(t, err)
	}()

	select {
	case <-started:
		t.Fatal("second generation started while the first was streaming")
	case <-time.After(50 * time.Millisecond):
	}
	eng.mu.Lock()
	assert.Len(t, eng.requests, 1)
	eng.mu.Unlock()
	assert.Zero(t, eng.unloaded)

	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), peak.Load())
	assert.Equal(t, []string{"ok", "ok"}, texts)
}

func TestPurge(t *testing.T) {
	cache := &fakeCache{keys: map[string]bool{
		"webllm/config":             true,
		"webllm/model/" + llama3B:   true,
		"webllm/wasm/" + llama3B:    true,
		"Phi3.5Mini-shards":         true,
		"gemma-unrelated-tokenizer": true,
		"other-app-cache":           true,
	}}
	rt := &fakeRuntime{cache: cache}
	m := newManager(t, rt, nil)
	_, err := m.Init(context.Background(), nil, "")
	require.NoError(t, err)

	res, err := m.Purge(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Count)
	assert.ElementsMatch(t, []string{"Llama 3.2 3B", "Phi 3.5 Mini"}, res.Models)
	assert.Equal(t, map[string]bool{"other-app-cache": true}, cache.keys, "every runtime entry is deleted")
	assert.Equal(t, 1, rt.engines[0].unloaded)
	assert.Empty(t, m.LoadedModel())
	assert.Equal(t, StateIdle, m.Status().State)
}

func TestPurge_NoCache(t *testing.T) {
	res, err := newManager(t, &fakeRuntime{}, nil).Purge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count)
	assert.Empty(t, res.Models)
}

func TestErrors(t *testing.T) {
	assert.True(t, errors.Is(&EngineNotInitializedError{}, ErrEngineNotInitialized))
	assert.Equal(t, "unsupported platform: no GPU", (&UnsupportedPlatformError{Reason: "no GPU"}).Error())
}
