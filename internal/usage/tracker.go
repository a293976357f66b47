// Package usage tracks token usage of successful requests.
package usage

import (
	"sort"
	"sync"
	"time"

	"github.com/Bestehorn/LLMManager-sub002/internal/model"
	"github.com/Bestehorn/LLMManager-sub002/pkg/protocol"
)

// Totals is accumulated usage.
type Totals struct {
	Requests        int `json:"requests"`
	ProfileRequests int `json:"profile_requests"` // Served through an inference profile
	InputTokens     int `json:"input_tokens"`
	OutputTokens    int `json:"output_tokens"`
	TotalTokens     int `json:"total_tokens"`
}

func (t *Totals) add(method protocol.AccessMethod, u model.Usage) {
	t.Requests++
	if method.IsProfile() {
		t.ProfileRequests++
	}
	t.InputTokens += u.InputTokens
	t.OutputTokens += u.OutputTokens
	t.TotalTokens += u.TotalTokens
}

// DailyStats is usage for a single day.
type DailyStats struct {
	Date string `json:"date"`
	Totals
}

// Tracker accumulates usage per model and per day. Safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	byModel map[string]*Totals
	total   Totals
	daily   DailyStats
	now     func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	t := &Tracker{byModel: make(map[string]*Totals), now: time.Now}
	t.daily.Date = t.today()
	return t
}

func (t *Tracker) today() string {
	return t.now().Format("2006-01-02")
}

// Record adds one successful request. The daily totals roll over when the
// date changes.
func (t *Tracker) Record(modelName string, method protocol.AccessMethod, u model.Usage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if d := t.today(); d != t.daily.Date {
		t.daily = DailyStats{Date: d}
	}

	m, ok := t.byModel[modelName]
	if !ok {
		m = &Totals{}
		t.byModel[modelName] = m
	}
	m.add(method, u)
	t.total.add(method, u)
	t.daily.add(method, u)
}

// Model returns the totals for one model.
func (t *Tracker) Model(name string) Totals {
	t.mu.Lock()
	defer t.mu.Unlock()
	if m, ok := t.byModel[name]; ok {
		return *m
	}
	return Totals{}
}

// Models returns the names of every model with recorded usage, sorted.
func (t *Tracker) Models() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	names := make([]string, 0, len(t.byModel))
	for n := range t.byModel {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Total returns usage since creation or the last Reset.
func (t *Tracker) Total() Totals {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// Daily returns today's usage.
func (t *Tracker) Daily() DailyStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	if d := t.today(); d != t.daily.Date {
		return DailyStats{Date: d}
	}
	return t.daily
}

// ProfileRate returns the percentage of requests served through an
// inference profile.
func (t *Tracker) ProfileRate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.total.Requests == 0 {
		return 0
	}
	return float64(t.total.ProfileRequests) / float64(t.total.Requests) * 100
}

// Reset drops all recorded usage.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byModel = make(map[string]*Totals)
	t.total = Totals{}
	t.daily = DailyStats{Date: t.today()}
}
