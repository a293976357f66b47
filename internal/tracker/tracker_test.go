package tracker

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bestehorn/LLMManager-sub002/pkg/protocol"
)

func TestHashParametersIgnoresKeyOrder(t *testing.T) {
	a := map[string]any{"anthropic_beta": []string{"x"}, "top_k": 5, "nested": map[string]any{"b": 1, "a": 2}}
	b := map[string]any{"nested": map[string]any{"a": 2, "b": 1}, "top_k": 5, "anthropic_beta": []string{"x"}}

	assert.Equal(t, HashParameters(a), HashParameters(b))
	assert.NotEqual(t, HashParameters(a), HashParameters(map[string]any{"top_k": 6}))
	assert.Equal(t, "", HashParameters(nil))
	assert.Equal(t, "", HashParameters(map[string]any{}))
}

func TestParameterTrackerMostRecentWins(t *testing.T) {
	params := map[string]any{"anthropic_beta": []string{"context-1m-2025-08-07"}}

	t.Run("success then failure", func(t *testing.T) {
		p := NewParameterTracker(10)
		p.RecordSuccess("claude", "us-east-1", params)
		p.RecordFailure("claude", "us-east-1", params, []string{"anthropic_beta"})

		record, ok := p.Query("claude", "us-east-1", params)
		require.True(t, ok)
		assert.False(t, record.Compatible)
		assert.Equal(t, []string{"anthropic_beta"}, record.Fields)
		assert.True(t, p.IsKnownIncompatible("claude", "us-east-1", params))
	})

	t.Run("failure then success", func(t *testing.T) {
		p := NewParameterTracker(10)
		p.RecordFailure("claude", "us-east-1", params, nil)
		p.RecordSuccess("claude", "us-east-1", params)

		record, ok := p.Query("claude", "us-east-1", params)
		require.True(t, ok)
		assert.True(t, record.Compatible)
		assert.False(t, p.IsKnownIncompatible("claude", "us-east-1", params))
	})
}

func TestParameterTrackerKeysAreScoped(t *testing.T) {
	p := NewParameterTracker(10)
	params := map[string]any{"top_k": 5}
	p.RecordFailure("claude", "us-east-1", params, []string{"top_k"})

	assert.False(t, p.IsKnownIncompatible("claude", "us-west-2", params))
	assert.False(t, p.IsKnownIncompatible("nova", "us-east-1", params))
	assert.False(t, p.IsKnownIncompatible("claude", "us-east-1", map[string]any{"top_k": 6}))
	assert.False(t, p.IsKnownIncompatible("claude", "us-east-1", nil), "empty payloads are never incompatible")
}

func TestParameterTrackerStatistics(t *testing.T) {
	p := NewParameterTracker(10)
	p.RecordSuccess("a", "r1", map[string]any{"x": 1})
	p.RecordFailure("a", "r1", map[string]any{"y": 1}, nil)
	p.RecordFailure("b", "r1", map[string]any{"y": 1}, nil)

	s := p.Statistics()
	assert.Equal(t, 3, s.Entries)
	assert.Equal(t, 1, s.Compatible)
	assert.Equal(t, 2, s.Incompatible)
	assert.Equal(t, int64(3), s.Writes)

	p.Reset()
	assert.Zero(t, p.Statistics().Entries)
}

func TestStaleObservationIsDropped(t *testing.T) {
	a := NewAccessTracker(10)
	base := time.Now()

	a.now = func() time.Time { return base.Add(time.Second) }
	a.RecordSuccess("m", "r", protocol.AccessGlobalProfile, true)

	// An observation taken earlier but written later must not win.
	a.now = func() time.Time { return base }
	a.RecordSuccess("m", "r", protocol.AccessDirect, false)

	pref, ok := a.Query("m", "r")
	require.True(t, ok)
	assert.Equal(t, protocol.AccessGlobalProfile, pref.Method)
	assert.Equal(t, int64(1), a.Statistics().Stale)
}

func TestAccessTrackerMostRecentWins(t *testing.T) {
	t.Run("requirement then success", func(t *testing.T) {
		a := NewAccessTracker(10)
		a.RecordRequirement("m", "r", protocol.AccessRegionalProfile)
		a.RecordSuccess("m", "r", protocol.AccessGlobalProfile, true)

		pref, ok := a.Query("m", "r")
		require.True(t, ok)
		assert.Equal(t, protocol.AccessGlobalProfile, pref.Method)
		assert.True(t, pref.RequiresProfile())
	})

	t.Run("success then requirement", func(t *testing.T) {
		a := NewAccessTracker(10)
		a.RecordSuccess("m", "r", protocol.AccessDirect, false)
		a.RecordRequirement("m", "r", protocol.AccessDirect)

		pref, ok := a.Query("m", "r")
		require.True(t, ok)
		assert.Equal(t, protocol.AccessRegionalProfile, pref.Method, "requirements always point at a profile")
		assert.True(t, pref.LearnedFromError)
	})
}

func TestAccessTrackerStatistics(t *testing.T) {
	a := NewAccessTracker(10)
	a.RecordSuccess("m1", "r", protocol.AccessDirect, false)
	a.RecordSuccess("m2", "r", protocol.AccessRegionalProfile, true)
	a.RecordRequirement("m3", "r", protocol.AccessGlobalProfile)

	_, ok := a.Query("missing", "r")
	assert.False(t, ok)

	s := a.Statistics()
	assert.Equal(t, 3, s.Entries)
	assert.Equal(t, 1, s.ByMethod[protocol.AccessDirect])
	assert.Equal(t, 1, s.ByMethod[protocol.AccessRegionalProfile])
	assert.Equal(t, 1, s.ByMethod[protocol.AccessGlobalProfile])
	assert.Equal(t, 2, s.LearnedFromError)
	assert.Equal(t, int64(1), s.Misses)
}

func TestTrackerIsBounded(t *testing.T) {
	a := NewAccessTracker(3)
	for i := 0; i < 10; i++ {
		a.RecordSuccess(fmt.Sprintf("m%d", i), "r", protocol.AccessDirect, false)
	}

	s := a.Statistics()
	assert.Equal(t, 3, s.Entries)
	assert.Equal(t, 3, s.Capacity)
	assert.Equal(t, int64(7), s.Evictions)

	_, ok := a.Query("m0", "r")
	assert.False(t, ok, "oldest entry is evicted")
	_, ok = a.Query("m9", "r")
	assert.True(t, ok)
}

func TestConcurrentWriters(t *testing.T) {
	p := NewParameterTracker(100)
	a := NewAccessTracker(100)
	params := map[string]any{"x": 1}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if (i+j)%2 == 0 {
					p.RecordSuccess("m", "r", params)
					a.RecordSuccess("m", "r", protocol.AccessDirect, false)
				} else {
					p.RecordFailure("m", "r", params, nil)
					a.RecordRequirement("m", "r", protocol.AccessRegionalProfile)
				}
				p.Query("m", "r", params)
				a.Query("m", "r")
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, p.Statistics().Entries)
	assert.Equal(t, 1, a.Statistics().Entries)
}
