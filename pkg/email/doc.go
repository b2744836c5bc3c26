// Package email sends transactional emails through a provider-agnostic
// EmailSender. NewPostmarkClient delivers through Postmark; DevSender writes
// messages to a local directory so notification flows can be inspected
// without credentials.
package email
