// Package mail delivers magic-link emails over SMTP with STARTTLS.
// When SMTP is unconfigured, LogSender writes the message to the log so
// local development can copy the link from server output.
package mail
