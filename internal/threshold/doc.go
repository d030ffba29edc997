// Package threshold implements the pure threshold evaluator: it maps one
// measurement plus the sensor's configured bounds to an anomaly verdict and
// derives a severity from how far the reading sits outside the bound.
// No state, no I/O: the same inputs always produce the same verdict, which
// is what lets both the live ingestion path and batch back-fills share it.
package threshold
