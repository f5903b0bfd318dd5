package episode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendloop/internal/domain"
)

func TestExportEpisode_OneRowPerWindowSameUnit(t *testing.T) {
	r := newRecorder()
	ep := domain.Episode{
		ID:       "ep-9",
		Class:    domain.EpisodeS1Entry,
		Outcome:  domain.OutcomeFailure,
		ClosedAt: t0,
		Scope:    map[string]string{domain.ScopeChain: "solana"},
		Windows:  []domain.Window{{}, {}, {}},
	}
	fact, rows := r.ExportEpisode(ep)
	assert.Equal(t, "S1.buy_signal.entry", fact.PatternKey)
	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.Equal(t, "ep-9", row.UnitID)
		assert.Equal(t, domain.EvidenceEpisode, row.Source)
		assert.Equal(t, -1.0, row.Metric)
		assert.Equal(t, "solana", row.Scope[domain.ScopeChain])
	}

	ep.Windows = nil
	ep.Outcome = domain.OutcomeMissed
	_, rows = r.ExportEpisode(ep)
	require.Len(t, rows, 1)
	assert.Equal(t, 1.0, rows[0].Metric)
}

func TestExportTrade(t *testing.T) {
	f := domain.TradeFact{
		TradeID:  "trade-1",
		ClosedAt: t0,
		Summary:  domain.TradeSummary{RR: 2.5},
		Actions: []domain.ActionRecord{
			{PatternKey: "S1.buy_signal.entry", Category: "entry", Scope: map[string]string{"timeframe": "1h"}},
			{PatternKey: "S3.trim_flag.trim", Category: "trim", Scope: map[string]string{"timeframe": "1h"}},
		},
	}
	rows := ExportTrade(f)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, "trade-1", row.UnitID)
		assert.Equal(t, 2.5, row.Metric)
		assert.Equal(t, domain.EvidenceTrade, row.Source)
	}

	f.Actions = nil
	f.Summary.EntryContext = domain.EntryContext{PatternKey: "S2.buy_flag.entry"}
	rows = ExportTrade(f)
	require.Len(t, rows, 1)
	assert.Equal(t, "S2.buy_flag.entry", rows[0].PatternKey)

	assert.Nil(t, ExportTrade(domain.TradeFact{TradeID: "empty"}))
}
