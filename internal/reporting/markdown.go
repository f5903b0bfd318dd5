package reporting

import (
	"fmt"
	"strings"
	"time"

	"trendloop/internal/domain"
	"trendloop/internal/metrics"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Portfolio Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	p := r.Portfolio
	sb.WriteString("## Portfolio\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Positions | %d |\n", p.Positions))
	sb.WriteString(fmt.Sprintf("| Active | %d |\n", p.Active))
	sb.WriteString(fmt.Sprintf("| Watchlist | %d |\n", p.Watchlist))
	sb.WriteString(fmt.Sprintf("| Dormant | %d |\n", p.Dormant))
	sb.WriteString(fmt.Sprintf("| Allocation USD | %.2f |\n", p.AllocationUSD))
	sb.WriteString(fmt.Sprintf("| Deployed USD | %.2f |\n", p.DeployedUSD))
	sb.WriteString(fmt.Sprintf("| Realized PnL USD | %.2f |\n", p.RealizedPnLUSD))
	sb.WriteString(fmt.Sprintf("| Unrealized PnL USD | %.2f |\n", p.UnrealizedPnLUSD))
	sb.WriteString(fmt.Sprintf("| Completed Trades | %d |\n", p.TotalTrades))
	if p.TotalTrades > 0 {
		sb.WriteString(fmt.Sprintf("| First Entry | %s |\n", p.FirstEntry.Format(time.RFC3339)))
		sb.WriteString(fmt.Sprintf("| Last Exit | %s |\n", p.LastExit.Format(time.RFC3339)))
	}
	sb.WriteString("\n")

	sb.WriteString("## Overall\n\n")
	if r.Overall != nil {
		writeAggregates(&sb, "Group", []metrics.Aggregate{*r.Overall})
	} else {
		sb.WriteString("No completed trades.\n\n")
	}

	sb.WriteString("## By Entry Pattern\n\n")
	writeAggregatesOrEmpty(&sb, "Pattern", r.ByPattern)

	sb.WriteString("## By Exit State\n\n")
	writeAggregatesOrEmpty(&sb, "Exit", r.ByExit)

	sb.WriteString("## By Chain\n\n")
	writeAggregatesOrEmpty(&sb, "Chain", r.ByChain)

	sb.WriteString("## Lessons\n\n")
	if len(r.Lessons) > 0 {
		sb.WriteString("| Kind | Pattern | Category | Scope | N | Mean | Delta | Edge |\n")
		sb.WriteString("|------|---------|----------|-------|---|------|-------|------|\n")
		for _, l := range r.Lessons {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %d | %.4f | %.4f | %.4f |\n",
				l.Kind, l.PatternKey, l.Category, scopeLabel(l.Scope), l.N, l.Mean, l.Delta, l.Edge))
		}
	} else {
		sb.WriteString("No lessons mined.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func writeAggregatesOrEmpty(sb *strings.Builder, label string, aggs []metrics.Aggregate) {
	if len(aggs) == 0 {
		sb.WriteString("No data.\n\n")
		return
	}
	writeAggregates(sb, label, aggs)
}

func writeAggregates(sb *strings.Builder, label string, aggs []metrics.Aggregate) {
	sb.WriteString(fmt.Sprintf("| %s | Trades | Tokens | WinRate | TokenWinRate | RR Mean | RR Median | RR P10 | RR P90 | PnL | MaxDD | MaxLoss |\n", label))
	sb.WriteString("|------|--------|--------|---------|--------------|---------|-----------|--------|--------|-----|-------|---------|\n")
	for _, a := range aggs {
		sb.WriteString(fmt.Sprintf("| %s | %d | %d | %.4f | %.4f | %.4f | %.4f | %.4f | %.4f | %.2f | %.2f | %d |\n",
			a.Group, a.TotalTrades, a.TotalTokens, a.WinRate, a.TokenWinRate,
			a.RRMean, a.RRMedian, a.RRP10, a.RRP90, a.PnLTotal, a.MaxDrawdownUSD, a.MaxConsecutiveLosses))
	}
	sb.WriteString("\n")
}

func scopeLabel(scope map[string]string) string {
	if len(scope) == 0 {
		return "global"
	}
	return domain.CanonicalScope(scope)
}
