// Package catalog maintains the per-channel index of discoverable items,
// bounded by a cutoff date and persisted as a JSON document.
package catalog
