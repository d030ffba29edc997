// Package store keeps the in-memory window of recent measurements that feeds
// the recommendation engine and the realtime snapshot for late-joining
// subscribers. Entries are bounded per (farm, class) key and evicted by a
// background TTL loop; durable storage is the external layer's concern.
package store
