// Package ledger tracks what each channel has actually fetched and decides
// whether items are skipped, fetched, or fetched again.
package ledger
