package reporting

import (
	"fmt"
	"strings"
	"time"

	"trendloop/internal/domain"
	"trendloop/internal/metrics"
)

// RenderTradesCSV renders completed trades as CSV string.
func RenderTradesCSV(trades []metrics.Trade) string {
	var sb strings.Builder

	sb.WriteString("trade_id,token,chain,timeframe,bucket,entry_pattern,entry_at,exit_at,")
	sb.WriteString("entry_price,exit_price,allocated_usd,extracted_usd,pnl_usd,roi,rr,")
	sb.WriteString("did_trim,reached_s3,closed_by_state\n")

	for _, t := range trades {
		s := t.Summary
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s,%s,%s,%.8f,%.8f,%.6f,%.6f,%.6f,%.6f,%.6f,%t,%t,%s\n",
			s.TradeID,
			t.Key.Token,
			t.Key.Chain,
			t.Key.Timeframe,
			t.Bucket,
			s.EntryContext.PatternKey,
			s.EntryAt.Format(time.RFC3339),
			s.ExitAt.Format(time.RFC3339),
			s.EntryPrice,
			s.ExitPrice,
			s.AllocatedUSD,
			s.ExtractedUSD,
			s.PnLUSD,
			s.ROI,
			s.RR,
			s.DidTrim,
			s.ReachedS3,
			s.ClosedByState,
		))
	}

	return sb.String()
}

// RenderLessonsCSV renders lessons as CSV string. The scope column is
// quoted since canonical scopes contain commas.
func RenderLessonsCSV(lessons []domain.Lesson) string {
	var sb strings.Builder

	sb.WriteString("id,kind,pattern_key,category,scope,n,mean,variance,baseline,delta,")
	sb.WriteString("reliability,support,consistency,decay,edge,mined_at\n")

	for _, l := range lessons {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,\"%s\",%d,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%s\n",
			l.ID,
			l.Kind,
			l.PatternKey,
			l.Category,
			domain.CanonicalScope(l.Scope),
			l.N,
			l.Mean,
			l.Variance,
			l.Baseline,
			l.Delta,
			l.Reliability,
			l.Support,
			l.Consistency,
			l.Decay,
			l.Edge,
			l.MinedAt.Format(time.RFC3339),
		))
	}

	return sb.String()
}
