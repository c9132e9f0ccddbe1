// Package compute turns scraped relaxation sweeps into graded T1 fits.
//
// score.go provides the pure Compute(Input) function that calculates the
// composite quality score (0–100): precision(40%) + plausibility(30%) +
// coverage(20%) + uptime(10%).
//
// engine.go provides the stateful Engine that merges each source's points
// per qubit across scrape cycles (latest value per delay wins) and refits the
// merged sweep with decay.FitSeries. Engine.Process accepts an injectable
// time.Time so tests are deterministic.
//
// Fit state thresholds: Good ≥85, Suspect 60–84, Poor <60. Unknown means no
// usable data yet; Failed means the estimator rejected the sweep.
package compute
