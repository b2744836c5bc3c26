// Package lifecycle runs the scheduled subscription scans.
//
// The expiration scan moves overdue trials into the grace period, suspends
// subscriptions whose grace period or past-due window has lapsed, and ends
// canceled subscriptions once their access window is over. The reminder
// scan emits trial-expiring events 7, 3 and 1 days before a trial ends.
//
// Every subscription is handled independently on a bounded worker pool:
// errors and panics are logged, counted in the Report and in
// subcycle_scan_items_total, and never stop the scan.
package lifecycle
