// Package recommend derives ranked remediation recommendations from a window
// of recent measurements, grouped by parameter class. It is rule-driven: each
// known class has an optimal range and a pair of templated recommendations
// for readings below or above it, plus cross-parameter maintenance and
// optimization suggestions when the whole system sits inside its ranges.
//
// The engine carries a never-fail contract: any internal fault degrades to a
// single fixed fallback recommendation instead of propagating, so generation
// can never break the ingestion path that triggers it.
package recommend
