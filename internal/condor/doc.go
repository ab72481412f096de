// Package condor implements the iron condor search engine: chain filtering,
// candidate enumeration, metric calculation and ranking.
//
// An iron condor is a long put, a short put, a short call and a long call on
// the same expiration, with strikes ordered
//
//	long put < short put < spot < short call < long call
//
// The position collects a net credit and profits when the underlying settles
// between the two short strikes.
//
// # Pipeline
//
// One search is a single synchronous pass over an in-memory Chain snapshot:
//
//   - ChainFilter drops legs below the volume threshold, sorts by strike and
//     keeps the out-of-the-money side of each list. Expirations with fewer
//     than two OTM legs on either side are skipped.
//   - CandidateEnumerator derives the target short strikes from the price
//     band, keeps at most three short strikes per side inside a ±0.5 point
//     window (or the whole OTM list when the window is empty) and pairs each
//     short with the long leg closest to the configured spread width.
//     Unpriced legs and non-positive credits are rejected here.
//   - MetricsCalculator computes credit, max loss, position Greeks,
//     probability of profit, expected profit, spread quality and the
//     composite strategy score.
//   - Ranker drops candidates whose |position delta| exceeds the limit and
//     sorts by the selected SortMethod.
//
// Finder ties the stages together and records a SearchTrace with the state
// sequence COLLECTING_LEGS, ENUMERATING, SCORING, FILTERING, SORTED and the
// rejection counts per category. Expirations are independent and may be
// processed concurrently; the result order does not depend on the worker
// count.
//
// # Probability model
//
// Probability of profit is a simplified approximation, not an options
// pricing model. Per-leg implied volatilities are normalized (values above 10
// are percentages) and clamped to [0.10, 0.50], then averaged. The one-sigma
// move over the holding period is
//
//	std_dev = spot * (vol / sqrt(252)) * sqrt(dte)
//
// and the estimate is Φ(put_stdevs) * Φ(call_stdevs). Short-dated (dte <= 2)
// or high-volatility (vol > 0.4) inputs are capped at 0.85. When both
// standardized distances fall in (0.1, 2.0) the estimate is blended with
// 0.5 + min(put_stdevs, call_stdevs)/8. The result is clamped to
// [0.05, 0.95].
//
// # Known approximation
//
// MaxLoss assumes the wider of the put and call spread widths governs both
// tails:
//
//	max_loss = max(put_width, call_width)*100 - net_credit*100
//
// When the widths differ this understates the worst-case loss on the tail
// with the narrower wing. The formula is kept as the defined behavior.
//
// # Usage
//
//	finder := condor.NewFinder(4, slog.Default())
//	result, err := finder.Search(ctx, chain, condor.DefaultSearchParameters())
//	if err != nil {
//	    return err
//	}
//	for i, c := range result.Candidates {
//	    fmt.Println(c.Format(i, result.Params.MaxMovePct))
//	}
package condor
