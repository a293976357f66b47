package usage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Bestehorn/LLMManager-sub002/internal/model"
	"github.com/Bestehorn/LLMManager-sub002/pkg/protocol"
)

func TestRecordAccumulates(t *testing.T) {
	tr := NewTracker()
	tr.Record("Nova Pro", protocol.AccessDirect, model.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15})
	tr.Record("Nova Pro", protocol.AccessRegionalProfile, model.Usage{InputTokens: 1, OutputTokens: 1, TotalTokens: 2})
	tr.Record("Claude 3 Haiku", protocol.AccessGlobalProfile, model.Usage{TotalTokens: 3})

	nova := tr.Model("Nova Pro")
	assert.Equal(t, 2, nova.Requests)
	assert.Equal(t, 1, nova.ProfileRequests)
	assert.Equal(t, 17, nova.TotalTokens)
	assert.Equal(t, 11, nova.InputTokens)

	assert.Equal(t, 3, tr.Total().Requests)
	assert.Equal(t, 20, tr.Total().TotalTokens)
	assert.Equal(t, []string{"Claude 3 Haiku", "Nova Pro"}, tr.Models())
	assert.InDelta(t, 66.67, tr.ProfileRate(), 0.01)
	assert.Zero(t, tr.Model("unknown").Requests)
}

func TestDailyRollsOver(t *testing.T) {
	day := time.Date(2025, 9, 1, 23, 0, 0, 0, time.UTC)
	tr := NewTracker()
	tr.now = func() time.Time { return day }
	tr.Reset()

	tr.Record("Nova Pro", protocol.AccessDirect, model.Usage{TotalTokens: 4})
	assert.Equal(t, "2025-09-01", tr.Daily().Date)
	assert.Equal(t, 4, tr.Daily().TotalTokens)

	day = day.Add(2 * time.Hour)
	assert.Equal(t, "2025-09-02", tr.Daily().Date)
	assert.Zero(t, tr.Daily().Requests)

	tr.Record("Nova Pro", protocol.AccessDirect, model.Usage{TotalTokens: 1})
	assert.Equal(t, 1, tr.Daily().Requests)
	assert.Equal(t, 2, tr.Total().Requests, "totals span days")
}

func TestReset(t *testing.T) {
	tr := NewTracker()
	tr.Record("Nova Pro", protocol.AccessDirect, model.Usage{TotalTokens: 4})
	tr.Reset()

	assert.Zero(t, tr.Total().Requests)
	assert.Empty(t, tr.Models())
	assert.Zero(t, tr.ProfileRate())
}
