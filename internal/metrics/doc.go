// Package metrics declares every Prometheus metric the application
// exports, registered via promauto under the photoflow_ prefix. Keeping
// them in one place makes the scrape surface reviewable at a glance.
package metrics
