package episode

import (
	"trendloop/internal/domain"
)

// CategoryEntry is the action category episodes are scored under.
const CategoryEntry = "entry"

// ExportEpisode turns a closed episode into its fact and evidence rows:
// one row per window, all sharing the episode id as unit. An episode that
// never opened a window still yields one row.
func (r *Recorder) ExportEpisode(ep domain.Episode) (domain.EpisodeFact, []domain.EvidenceRow) {
	fact := domain.EpisodeFact{
		Episode:    *ep.Clone(),
		PatternKey: ep.Class.PatternKey(),
		Category:   CategoryEntry,
	}

	metric := r.cfg.OutcomeMetric[string(ep.Outcome)]
	row := func() domain.EvidenceRow {
		return domain.EvidenceRow{
			UnitID:     ep.ID,
			Source:     domain.EvidenceEpisode,
			PatternKey: fact.PatternKey,
			Category:   CategoryEntry,
			Scope:      domain.CloneScope(ep.Scope),
			Metric:     metric,
			At:         ep.ClosedAt,
		}
	}

	n := len(ep.Windows)
	if n == 0 {
		n = 1
	}
	rows := make([]domain.EvidenceRow, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, row())
	}
	return fact, rows
}

// ExportTrade turns a trade closure into evidence rows: one per realized
// action, all sharing the trade id as unit, scored by the trade's R multiple.
func ExportTrade(f domain.TradeFact) []domain.EvidenceRow {
	metric := f.Summary.RR
	if len(f.Actions) == 0 {
		ec := f.Summary.EntryContext
		if ec.PatternKey == "" {
			return nil
		}
		return []domain.EvidenceRow{{
			UnitID:     f.TradeID,
			Source:     domain.EvidenceTrade,
			PatternKey: ec.PatternKey,
			Category:   CategoryEntry,
			Scope:      domain.CloneScope(ec.Scope),
			Metric:     metric,
			At:         f.ClosedAt,
		}}
	}

	rows := make([]domain.EvidenceRow, 0, len(f.Actions))
	for _, a := range f.Actions {
		rows = append(rows, domain.EvidenceRow{
			UnitID:     f.TradeID,
			Source:     domain.EvidenceTrade,
			PatternKey: a.PatternKey,
			Category:   a.Category,
			Scope:      domain.CloneScope(a.Scope),
			Metric:     metric,
			At:         f.ClosedAt,
		})
	}
	return rows
}
