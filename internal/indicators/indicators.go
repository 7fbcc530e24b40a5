// Package indicators computes technical indicators over OHLC candle
// windows using decimal.Decimal arithmetic throughout — ATR/stddev/EMA
// building blocks extended with the full indicator set signal
// generation needs.
package indicators

import (
	"github.com/shopspring/decimal"

	"github.com/mt5bridge/engine/internal/store"
)

var (
	two     = decimal.NewFromInt(2)
	hundred = decimal.NewFromInt(100)
)

// ═══════════════════════════════════════════════════════════════════════════
// MOVING AVERAGES
// ═══════════════════════════════════════════════════════════════════════════

// SMA returns the simple moving average of the last `period` closes.
func SMA(closes []decimal.Decimal, period int) decimal.Decimal {
	if len(closes) == 0 {
		return decimal.Zero
	}
	if period > len(closes) {
		period = len(closes)
	}
	window := closes[len(closes)-period:]
	return average(window)
}

// EMA returns the exponential moving average seeded by an SMA of the
// first `period` values, then applying the standard EMA recurrence over
// a fixed slice instead of a running tracker.
func EMA(closes []decimal.Decimal, period int) decimal.Decimal {
	if len(closes) == 0 {
		return decimal.Zero
	}
	if len(closes) < period {
		return average(closes)
	}
	mult := two.Div(decimal.NewFromInt(int64(period + 1)))
	ema := average(closes[:period])
	for _, p := range closes[period:] {
		ema = p.Sub(ema).Mul(mult).Add(ema)
	}
	return ema
}

// EMASeries returns EMA values aligned to each input index, needed for
// crossover detection (fast/slow EMA cross) and MACD's signal line.
func EMASeries(closes []decimal.Decimal, period int) []decimal.Decimal {
	out := make([]decimal.Decimal, len(closes))
	if len(closes) == 0 {
		return out
	}
	mult := two.Div(decimal.NewFromInt(int64(period + 1)))
	ema := closes[0]
	out[0] = ema
	for i := 1; i < len(closes); i++ {
		ema = closes[i].Sub(ema).Mul(mult).Add(ema)
		out[i] = ema
	}
	return out
}

// CrossedUp reports whether fast crossed above slow on the latest bar.
func CrossedUp(fast, slow []decimal.Decimal) bool {
	n := len(fast)
	if n < 2 || len(slow) != n {
		return false
	}
	return fast[n-2].LessThanOrEqual(slow[n-2]) && fast[n-1].GreaterThan(slow[n-1])
}

// CrossedDown reports whether fast crossed below slow on the latest bar.
func CrossedDown(fast, slow []decimal.Decimal) bool {
	n := len(fast)
	if n < 2 || len(slow) != n {
		return false
	}
	return fast[n-2].GreaterThanOrEqual(slow[n-2]) && fast[n-1].LessThan(slow[n-1])
}

// ═══════════════════════════════════════════════════════════════════════════
// RSI
// ═══════════════════════════════════════════════════════════════════════════

// RSI computes the Relative Strength Index over the trailing `period` bars
// using Wilder smoothing. Returns 50 (neutral) when there isn't enough
// history.
func RSI(closes []decimal.Decimal, period int) decimal.Decimal {
	if len(closes) < period+1 {
		return decimal.NewFromInt(50)
	}

	gains := make([]decimal.Decimal, 0, len(closes)-1)
	losses := make([]decimal.Decimal, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		change := closes[i].Sub(closes[i-1])
		if change.IsPositive() {
			gains = append(gains, change)
			losses = append(losses, decimal.Zero)
		} else {
			gains = append(gains, decimal.Zero)
			losses = append(losses, change.Abs())
		}
	}

	avgGain := average(gains[:period])
	avgLoss := average(losses[:period])
	periodD := decimal.NewFromInt(int64(period))

	for i := period; i < len(gains); i++ {
		avgGain = avgGain.Mul(periodD.Sub(decimal.NewFromInt(1))).Add(gains[i]).Div(periodD)
		avgLoss = avgLoss.Mul(periodD.Sub(decimal.NewFromInt(1))).Add(losses[i]).Div(periodD)
	}

	if avgLoss.IsZero() {
		return hundred
	}
	rs := avgGain.Div(avgLoss)
	return hundred.Sub(hundred.Div(decimal.NewFromInt(1).Add(rs)))
}

// ═══════════════════════════════════════════════════════════════════════════
// MACD
// ═══════════════════════════════════════════════════════════════════════════

// MACDResult carries the MACD line, its signal line, and the histogram.
type MACDResult struct {
	MACD      decimal.Decimal
	Signal    decimal.Decimal
	Histogram decimal.Decimal
}

// MACDCalc computes the MACD line as fastEMA-slowEMA across the whole
// series, then the signal line as an EMA of that series, tracking
// genuine MACD history so the signal line isn't a fixed multiple of
// the line.
func MACDCalc(closes []decimal.Decimal, fast, slow, signal int) MACDResult {
	if len(closes) < slow {
		return MACDResult{}
	}
	fastSeries := EMASeries(closes, fast)
	slowSeries := EMASeries(closes, slow)
	macdSeries := make([]decimal.Decimal, len(closes))
	for i := range closes {
		macdSeries[i] = fastSeries[i].Sub(slowSeries[i])
	}
	signalSeries := EMASeries(macdSeries, signal)
	last := len(closes) - 1
	macd := macdSeries[last]
	sig := signalSeries[last]
	return MACDResult{MACD: macd, Signal: sig, Histogram: macd.Sub(sig)}
}

// ═══════════════════════════════════════════════════════════════════════════
// ATR / TRUE RANGE
// ═══════════════════════════════════════════════════════════════════════════

// ATR computes the Average True Range over the trailing `period` bars.
func ATR(candles []store.OHLCCandle, period int) decimal.Decimal {
	if len(candles) < 2 {
		return decimal.Zero
	}
	trs := trueRanges(candles)
	return SMA(trs, period)
}

func trueRanges(candles []store.OHLCCandle) []decimal.Decimal {
	trs := make([]decimal.Decimal, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		hl := candles[i].High.Sub(candles[i].Low)
		hpc := candles[i].High.Sub(candles[i-1].Close).Abs()
		lpc := candles[i].Low.Sub(candles[i-1].Close).Abs()
		tr := hl
		if hpc.GreaterThan(tr) {
			tr = hpc
		}
		if lpc.GreaterThan(tr) {
			tr = lpc
		}
		trs = append(trs, tr)
	}
	return trs
}

// ═══════════════════════════════════════════════════════════════════════════
// BOLLINGER BANDS
// ═══════════════════════════════════════════════════════════════════════════

// BollingerResult carries the three Bollinger Band levels.
type BollingerResult struct {
	Upper, Middle, Lower decimal.Decimal
}

// Bollinger computes Bollinger Bands at `stdDevMult` standard deviations.
func Bollinger(closes []decimal.Decimal, period int, stdDevMult decimal.Decimal) BollingerResult {
	if len(closes) < period {
		return BollingerResult{}
	}
	window := closes[len(closes)-period:]
	middle := average(window)
	sd := stdDev(window, middle)
	band := sd.Mul(stdDevMult)
	return BollingerResult{Upper: middle.Add(band), Middle: middle, Lower: middle.Sub(band)}
}

// ═══════════════════════════════════════════════════════════════════════════
// STOCHASTIC OSCILLATOR
// ═══════════════════════════════════════════════════════════════════════════

// Stochastic computes %K over the trailing `period` bars using
// high/low/close — the classic fast stochastic (no %D smoothing, which
// callers can apply themselves via SMA over successive %K values).
func Stochastic(candles []store.OHLCCandle, period int) decimal.Decimal {
	if len(candles) < period {
		return decimal.NewFromInt(50)
	}
	window := candles[len(candles)-period:]
	lowest, highest := window[0].Low, window[0].High
	for _, c := range window[1:] {
		if c.Low.LessThan(lowest) {
			lowest = c.Low
		}
		if c.High.GreaterThan(highest) {
			highest = c.High
		}
	}
	rangeDiff := highest.Sub(lowest)
	if rangeDiff.IsZero() {
		return decimal.NewFromInt(50)
	}
	close := window[len(window)-1].Close
	return close.Sub(lowest).Div(rangeDiff).Mul(hundred)
}

// ═══════════════════════════════════════════════════════════════════════════
// ADX / REGIME DETECTION
// ═══════════════════════════════════════════════════════════════════════════

// Regime classifies market condition by ADX strength.
type Regime string

const (
	RegimeTrending  Regime = "trending"
	RegimeRanging   Regime = "ranging"
	RegimeVolatile  Regime = "volatile"
)

// ADX computes a simplified Average Directional Index over the trailing
// window, built on the same true-range building block as ATR.
func ADX(candles []store.OHLCCandle, period int) decimal.Decimal {
	if len(candles) < period+1 {
		return decimal.Zero
	}
	window := candles[len(candles)-period-1:]

	var plusDM, minusDM, trSum decimal.Decimal
	for i := 1; i < len(window); i++ {
		upMove := window[i].High.Sub(window[i-1].High)
		downMove := window[i-1].Low.Sub(window[i].Low)
		if upMove.IsPositive() && upMove.GreaterThan(downMove) {
			plusDM = plusDM.Add(upMove)
		}
		if downMove.IsPositive() && downMove.GreaterThan(upMove) {
			minusDM = minusDM.Add(downMove)
		}
		hl := window[i].High.Sub(window[i].Low)
		hpc := window[i].High.Sub(window[i-1].Close).Abs()
		lpc := window[i].Low.Sub(window[i-1].Close).Abs()
		tr := hl
		if hpc.GreaterThan(tr) {
			tr = hpc
		}
		if lpc.GreaterThan(tr) {
			tr = lpc
		}
		trSum = trSum.Add(tr)
	}
	if trSum.IsZero() {
		return decimal.Zero
	}
	plusDI := plusDM.Div(trSum).Mul(hundred)
	minusDI := minusDM.Div(trSum).Mul(hundred)
	sumDI := plusDI.Add(minusDI)
	if sumDI.IsZero() {
		return decimal.Zero
	}
	dx := plusDI.Sub(minusDI).Abs().Div(sumDI).Mul(hundred)
	return dx
}

// ClassifyRegime buckets ADX into a trading regime: ADX > 25 is trending,
// below 20 is ranging, the band between is treated as volatile/transitional.
func ClassifyRegime(adx decimal.Decimal) Regime {
	switch {
	case adx.GreaterThan(decimal.NewFromInt(25)):
		return RegimeTrending
	case adx.LessThan(decimal.NewFromInt(20)):
		return RegimeRanging
	default:
		return RegimeVolatile
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// SUPERTREND
// ═══════════════════════════════════════════════════════════════════════════

// SuperTrendResult reports the current band level and trend direction.
type SuperTrendResult struct {
	Level     decimal.Decimal
	Uptrend   bool
}

// SuperTrend computes a SuperTrend reading from ATR bands around the last
// bar's high/low midpoint: the trend is up when the last close is above
// that midpoint, and Level is the lower band in an uptrend, the upper band
// otherwise. No band state is carried over from earlier bars, so there is
// no band-cross flip logic.
func SuperTrend(candles []store.OHLCCandle, period int, multiplier decimal.Decimal) SuperTrendResult {
	if len(candles) < period+1 {
		return SuperTrendResult{}
	}
	atr := ATR(candles, period)
	last := candles[len(candles)-1]
	mid := last.High.Add(last.Low).Div(two)
	upperBand := mid.Add(atr.Mul(multiplier))
	lowerBand := mid.Sub(atr.Mul(multiplier))

	uptrend := last.Close.GreaterThan(mid)
	if uptrend {
		return SuperTrendResult{Level: lowerBand, Uptrend: true}
	}
	return SuperTrendResult{Level: upperBand, Uptrend: false}
}

// ═══════════════════════════════════════════════════════════════════════════
// ICHIMOKU CLOUD
// ═══════════════════════════════════════════════════════════════════════════

// IchimokuResult carries the core Ichimoku lines.
type IchimokuResult struct {
	Tenkan, Kijun, SpanA, SpanB decimal.Decimal
}

// Ichimoku computes the conversion/base lines and leading spans using the
// classic 9/26/52 periods (callers pass custom periods for other setups).
func Ichimoku(candles []store.OHLCCandle, tenkanP, kijunP, spanBP int) IchimokuResult {
	tenkan := midpointRange(candles, tenkanP)
	kijun := midpointRange(candles, kijunP)
	spanB := midpointRange(candles, spanBP)
	spanA := tenkan.Add(kijun).Div(two)
	return IchimokuResult{Tenkan: tenkan, Kijun: kijun, SpanA: spanA, SpanB: spanB}
}

func midpointRange(candles []store.OHLCCandle, period int) decimal.Decimal {
	if len(candles) < period {
		period = len(candles)
	}
	if period == 0 {
		return decimal.Zero
	}
	window := candles[len(candles)-period:]
	lowest, highest := window[0].Low, window[0].High
	for _, c := range window[1:] {
		if c.Low.LessThan(lowest) {
			lowest = c.Low
		}
		if c.High.GreaterThan(highest) {
			highest = c.High
		}
	}
	return highest.Add(lowest).Div(two)
}

// ═══════════════════════════════════════════════════════════════════════════
// HEIKEN-ASHI
// ═══════════════════════════════════════════════════════════════════════════

// HeikenAshiCandles converts raw OHLC into Heiken-Ashi smoothed candles.
func HeikenAshiCandles(candles []store.OHLCCandle) []store.OHLCCandle {
	if len(candles) == 0 {
		return nil
	}
	out := make([]store.OHLCCandle, len(candles))
	prevOpen := candles[0].Open
	prevClose := candles[0].Close
	for i, c := range candles {
		haClose := c.Open.Add(c.High).Add(c.Low).Add(c.Close).Div(decimal.NewFromInt(4))
		var haOpen decimal.Decimal
		if i == 0 {
			haOpen = c.Open.Add(c.Close).Div(two)
		} else {
			haOpen = prevOpen.Add(prevClose).Div(two)
		}
		haHigh := maxDec(c.High, haOpen, haClose)
		haLow := minDec(c.Low, haOpen, haClose)
		out[i] = store.OHLCCandle{
			Symbol: c.Symbol, Timeframe: c.Timeframe, Timestamp: c.Timestamp,
			Open: haOpen, High: haHigh, Low: haLow, Close: haClose, Volume: c.Volume,
		}
		prevOpen, prevClose = haOpen, haClose
	}
	return out
}

// ═══════════════════════════════════════════════════════════════════════════
// VOLUME ANALYSIS
// ═══════════════════════════════════════════════════════════════════════════

// OBV computes On-Balance Volume across the full series.
func OBV(candles []store.OHLCCandle) decimal.Decimal {
	if len(candles) == 0 {
		return decimal.Zero
	}
	obv := decimal.Zero
	for i := 1; i < len(candles); i++ {
		switch {
		case candles[i].Close.GreaterThan(candles[i-1].Close):
			obv = obv.Add(candles[i].Volume)
		case candles[i].Close.LessThan(candles[i-1].Close):
			obv = obv.Sub(candles[i].Volume)
		}
	}
	return obv
}

// VWAP computes the volume-weighted average price over the given window.
func VWAP(candles []store.OHLCCandle) decimal.Decimal {
	if len(candles) == 0 {
		return decimal.Zero
	}
	var pvSum, volSum decimal.Decimal
	for _, c := range candles {
		typical := c.High.Add(c.Low).Add(c.Close).Div(decimal.NewFromInt(3))
		pvSum = pvSum.Add(typical.Mul(c.Volume))
		volSum = volSum.Add(c.Volume)
	}
	if volSum.IsZero() {
		return decimal.Zero
	}
	return pvSum.Div(volSum)
}

// VolumeRatio compares the latest bar's volume against the trailing
// average — high ratios confirm a move, low ratios suggest it may fade.
func VolumeRatio(candles []store.OHLCCandle, period int) decimal.Decimal {
	if len(candles) < 2 {
		return decimal.NewFromInt(1)
	}
	if period > len(candles)-1 {
		period = len(candles) - 1
	}
	window := candles[len(candles)-1-period : len(candles)-1]
	vols := make([]decimal.Decimal, len(window))
	for i, c := range window {
		vols[i] = c.Volume
	}
	avg := average(vols)
	if avg.IsZero() {
		return decimal.NewFromInt(1)
	}
	return candles[len(candles)-1].Volume.Div(avg)
}

// ═══════════════════════════════════════════════════════════════════════════
// HELPERS
// ═══════════════════════════════════════════════════════════════════════════

func average(data []decimal.Decimal) decimal.Decimal {
	if len(data) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, v := range data {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(data))))
}

func stdDev(data []decimal.Decimal, mean decimal.Decimal) decimal.Decimal {
	if len(data) < 2 {
		return decimal.Zero
	}
	variance := decimal.Zero
	for _, p := range data {
		diff := p.Sub(mean)
		variance = variance.Add(diff.Mul(diff))
	}
	variance = variance.Div(decimal.NewFromInt(int64(len(data))))
	return sqrt(variance)
}

// sqrt approximates a square root via Newton's method: decimal has no
// native Sqrt.
func sqrt(d decimal.Decimal) decimal.Decimal {
	if d.IsZero() || d.IsNegative() {
		return decimal.Zero
	}
	x := d
	for i := 0; i < 20; i++ {
		x = x.Add(d.Div(x)).Div(two)
	}
	return x
}

func maxDec(vals ...decimal.Decimal) decimal.Decimal {
	m := vals[0]
	for _, v := range vals[1:] {
		if v.GreaterThan(m) {
			m = v
		}
	}
	return m
}

func minDec(vals ...decimal.Decimal) decimal.Decimal {
	m := vals[0]
	for _, v := range vals[1:] {
		if v.LessThan(m) {
			m = v
		}
	}
	return m
}

// Closes extracts the close price series from a candle window.
func Closes(candles []store.OHLCCandle) []decimal.Decimal {
	out := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
