// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package scoring

import (
	"math/big"
	"sort"
)

// Score runs the deterministic credit-scoring kernel over a list of raw
// transactions and returns the public journal that gets committed to a
// zkVM receipt.
//
// Score never panics: any transaction that fails the filtering rule is
// silently dropped rather than rejected, and an empty filtered set
// yields the documented null output. All arithmetic that influences the
// output is integer (big.Int where a product could overflow uint64) so
// the result is identical across hosts and Go versions.
func Score(transactions []Transaction) ProofOutput {
	valid := filter(transactions)

	if len(valid) == 0 {
		now := maxTimestamp(transactions)
		return ProofOutput{
			PeriodStart: now,
			PeriodEnd:   now,
			CreditScore: 0,
			Metrics: BusinessMetrics{
				MonthlyVolumeRange:     VolumeVeryLow,
				ConsistencyScore:       0,
				GrowthTrend:            GrowthDeclining,
				ActiveDaysPercentage:   0,
				CustomerDiversityScore: 0,
			},
		}
	}

	periodStart, periodEnd := period(valid)
	daysInPeriod := daysBetween(periodStart, periodEnd)

	byDay := groupByDay(valid)
	dayIndices := sortedDayIndices(byDay)

	totalVolume := new(big.Int)
	for _, tx := range valid {
		totalVolume.Add(totalVolume, new(big.Int).SetUint64(tx.Amount))
	}

	monthlyVolume := new(big.Int).Mul(totalVolume, big.NewInt(30))
	monthlyVolume.Div(monthlyVolume, new(big.Int).SetUint64(daysInPeriod))
	volumeRange := categorizeVolume(monthlyVolume)

	dailyTotals := make([]uint64, len(dayIndices))
	for i, day := range dayIndices {
		dailyTotals[i] = byDay[day]
	}

	consistency := consistencyScore(dailyTotals)
	activeDays := uint64(len(dayIndices))
	activeDaysPct := roundedPercentage(activeDays, daysInPeriod)
	growth := growthTrend(dayIndices, byDay)
	diversity := diversityScore(valid)

	metrics := BusinessMetrics{
		MonthlyVolumeRange:     volumeRange,
		ConsistencyScore:       consistency,
		GrowthTrend:            growth,
		ActiveDaysPercentage:   activeDaysPct,
		CustomerDiversityScore: diversity,
	}

	creditScore := creditScoreFor(metrics)

	return ProofOutput{
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		CreditScore: creditScore,
		Metrics:     metrics,
	}
}

// filter retains transactions with a positive amount and a recognized
// transaction type. Order of the input is irrelevant and not preserved.
func filter(transactions []Transaction) []Transaction {
	out := make([]Transaction, 0, len(transactions))
	for _, tx := range transactions {
		if tx.Amount == 0 {
			continue
		}
		if tx.TransactionType != TransactionTypePayment && tx.TransactionType != TransactionTypeReversal {
			continue
		}
		out = append(out, tx)
	}
	return out
}

func maxTimestamp(transactions []Transaction) int64 {
	var max int64
	for i, tx := range transactions {
		if i == 0 || tx.Timestamp > max {
			max = tx.Timestamp
		}
	}
	return max
}

func period(transactions []Transaction) (start, end int64) {
	start, end = transactions[0].Timestamp, transactions[0].Timestamp
	for _, tx := range transactions[1:] {
		if tx.Timestamp < start {
			start = tx.Timestamp
		}
		if tx.Timestamp > end {
			end = tx.Timestamp
		}
	}
	return start, end
}

// daysBetween returns the number of whole days spanned by the period,
// floored to a minimum of 1 to keep every division below safe.
func daysBetween(start, end int64) uint64 {
	diff := end - start
	if diff <= 0 {
		return 1
	}
	days := uint64(diff) / secondsPerDay
	if days < 1 {
		return 1
	}
	return days
}

// dayIndex is the Unix day number a timestamp falls on.
func dayIndex(timestamp int64) int64 {
	// Transactions are validated to carry non-negative amounts only;
	// timestamps are self-reported and may be negative in principle, so
	// use floor division rather than Go's truncating "/" to keep the
	// bucketing monotonic across the epoch.
	if timestamp >= 0 {
		return timestamp / secondsPerDay
	}
	return -((-timestamp + secondsPerDay - 1) / secondsPerDay)
}

func groupByDay(transactions []Transaction) map[int64]uint64 {
	byDay := make(map[int64]uint64)
	for _, tx := range transactions {
		byDay[dayIndex(tx.Timestamp)] += tx.Amount
	}
	return byDay
}

// sortedDayIndices returns the distinct active day indices in ascending
// order. Any statistic derived from map iteration must go through this
// first: Go's map iteration order is randomized per-process, and
// growth trend/ordered statistics would otherwise be nondeterministic.
func sortedDayIndices(byDay map[int64]uint64) []int64 {
	days := make([]int64, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days
}

func categorizeVolume(monthlyVolumeCents *big.Int) VolumeRange {
	volumeMajorUnits := new(big.Int).Div(monthlyVolumeCents, big.NewInt(100))
	switch {
	case volumeMajorUnits.Cmp(big.NewInt(50_000)) < 0:
		return VolumeVeryLow
	case volumeMajorUnits.Cmp(big.NewInt(250_000)) < 0:
		return VolumeLow
	case volumeMajorUnits.Cmp(big.NewInt(1_000_000)) < 0:
		return VolumeMedium
	case volumeMajorUnits.Cmp(big.NewInt(5_000_000)) < 0:
		return VolumeHigh
	default:
		return VolumeVeryHigh
	}
}

// consistencyScore computes round((1 - CV) * 100) clamped to [0, 100],
// where CV is the coefficient of variation of daily totals clamped to
// [0, 1]. All of mean, variance, and the square root are computed with
// big.Int so the result never depends on a host's floating-point unit.
func consistencyScore(dailyTotals []uint64) uint8 {
	if len(dailyTotals) == 0 {
		return 0
	}

	n := big.NewInt(int64(len(dailyTotals)))
	sum := new(big.Int)
	for _, total := range dailyTotals {
		sum.Add(sum, new(big.Int).SetUint64(total))
	}

	if sum.Sign() == 0 {
		return 0
	}

	// Work entirely in a fixed-point domain scaled by `scale` so that a
	// mean smaller than the day count never truncates to zero (which
	// would otherwise divide by zero below) and no host-dependent
	// floating point enters the computation.
	const scale = 1_000_000
	scaleBig := big.NewInt(scale)

	meanScaled := new(big.Int).Mul(sum, scaleBig)
	meanScaled.Div(meanScaled, n)
	if meanScaled.Sign() == 0 {
		return 0
	}

	sumSqDiffScaled := new(big.Int)
	for _, total := range dailyTotals {
		valueScaled := new(big.Int).Mul(new(big.Int).SetUint64(total), scaleBig)
		diff := new(big.Int).Sub(valueScaled, meanScaled)
		diff.Mul(diff, diff)
		sumSqDiffScaled.Add(sumSqDiffScaled, diff)
	}
	varianceScaled := new(big.Int).Div(sumSqDiffScaled, n)
	stdDevScaled := new(big.Int).Sqrt(varianceScaled)

	cvScaled := new(big.Int).Mul(stdDevScaled, scaleBig)
	cvScaled.Div(cvScaled, meanScaled)
	if cvScaled.Cmp(scaleBig) > 0 {
		cvScaled = scaleBig
	}

	// round((1 - cv) * 100) = round((scale - cvScaled) * 100 / scale)
	remainder := new(big.Int).Sub(scaleBig, cvScaled)
	remainder.Mul(remainder, big.NewInt(100))
	score := roundedDiv(remainder, scaleBig)

	if score.Sign() < 0 {
		return 0
	}
	if score.Cmp(big.NewInt(100)) > 0 {
		return 100
	}
	return uint8(score.Int64())
}

// roundedDiv computes round(a / b) for non-negative a, b using
// round-half-up semantics, entirely in integer arithmetic.
func roundedDiv(a, b *big.Int) *big.Int {
	if b.Sign() == 0 {
		return big.NewInt(0)
	}
	num := new(big.Int).Mul(a, big.NewInt(2))
	num.Add(num, b)
	den := new(big.Int).Mul(b, big.NewInt(2))
	return num.Div(num, den)
}

func roundedPercentage(numerator, denominator uint64) uint8 {
	if denominator == 0 {
		return 0
	}
	pct := roundedDiv(new(big.Int).SetUint64(numerator*100), new(big.Int).SetUint64(denominator))
	if pct.Sign() < 0 {
		return 0
	}
	if pct.Cmp(big.NewInt(100)) > 0 {
		return 100
	}
	return uint8(pct.Int64())
}

// growthTrend compares the sum of the first third of active days to the
// sum of the last third, classifying the relative change.
func growthTrend(dayIndices []int64, byDay map[int64]uint64) GrowthTrend {
	n := len(dayIndices)
	k := n / 3
	if k == 0 {
		return GrowthStable
	}

	var first, last uint64
	for _, day := range dayIndices[:k] {
		first += byDay[day]
	}
	for _, day := range dayIndices[n-k:] {
		last += byDay[day]
	}

	if first == 0 {
		return GrowthStable
	}

	// r = (last - first) / first, scaled by 1000 for three-decimal
	// precision on the -0.2/0.1/0.5 thresholds.
	const scale = 1000
	diff := new(big.Int).Sub(new(big.Int).SetUint64(last), new(big.Int).SetUint64(first))
	diff.Mul(diff, big.NewInt(scale))
	r := new(big.Int).Quo(diff, new(big.Int).SetUint64(first)) // truncating division toward zero

	switch {
	case r.Cmp(big.NewInt(-200)) < 0:
		return GrowthDeclining
	case r.Cmp(big.NewInt(100)) < 0:
		return GrowthStable
	case r.Cmp(big.NewInt(500)) < 0:
		return GrowthGrowing
	default:
		return GrowthRapid
	}
}

func diversityScore(transactions []Transaction) uint8 {
	seen := make(map[string]struct{}, len(transactions))
	for _, tx := range transactions {
		seen[tx.Reference] = struct{}{}
	}
	return roundedPercentageFloor(uint64(len(seen)), uint64(len(transactions)))
}

// roundedPercentageFloor truncates instead of rounding. Diversity is
// the one metric defined with a floor: 30 transactions sharing a single
// reference score floor(100/30) = 3, not 0 or 4.
func roundedPercentageFloor(numerator, denominator uint64) uint8 {
	if denominator == 0 {
		return 0
	}
	pct := (numerator * 100) / denominator
	if pct > 100 {
		return 100
	}
	return uint8(pct)
}

// creditScoreFor applies the weighted scoring table: volume 30,
// consistency 30, activity 20, growth 10, diversity 10. The final score
// is floored at the volume component whenever volume contributes at
// all; with no volume signal the score is 0 regardless of the rest.
func creditScoreFor(metrics BusinessMetrics) uint32 {
	volumePoints := volumeComponent(metrics.MonthlyVolumeRange)
	consistencyPoints := uint32(metrics.ConsistencyScore) * 30 / 100
	activityPoints := uint32(metrics.ActiveDaysPercentage) * 20 / 100
	growthPoints := growthComponent(metrics.GrowthTrend)
	diversityPoints := uint32(metrics.CustomerDiversityScore) * 10 / 100

	total := volumePoints + consistencyPoints + activityPoints + growthPoints + diversityPoints

	if volumePoints == 0 {
		return 0
	}
	if total < volumePoints {
		return volumePoints
	}
	return total
}

func volumeComponent(v VolumeRange) uint32 {
	switch v {
	case VolumeVeryLow:
		return 5
	case VolumeLow:
		return 10
	case VolumeMedium:
		return 20
	case VolumeHigh:
		return 25
	case VolumeVeryHigh:
		return 30
	default:
		return 0
	}
}

func growthComponent(g GrowthTrend) uint32 {
	switch g {
	case GrowthDeclining:
		return 0
	case GrowthStable:
		return 5
	case GrowthGrowing:
		return 7
	case GrowthRapid:
		return 10
	default:
		return 0
	}
}
