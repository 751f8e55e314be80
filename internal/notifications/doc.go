// Package notifications sends optional push notifications about harvest
// progress through an ntfy topic.
package notifications
