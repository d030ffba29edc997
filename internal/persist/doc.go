// Package persist defines the narrow interfaces through which the core hands
// alerts and recommendations to the external persistence collaborator, plus a
// MongoDB implementation of those interfaces. The core is a pure producer: it
// never reads back its own writes.
package persist
