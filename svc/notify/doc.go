// Package notify delivers lifecycle notifications to organization owners.
//
// EmailNotifier renders the embedded HTML templates and sends them through
// pkg/email (Postmark in production, files on disk in development).
// LogNotifier only logs. Multi fans out to several notifiers and never
// fails.
package notify
