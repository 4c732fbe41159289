// Package mail implements the email delivery channel. PostmarkSender sends
// through Postmark's transactional API; DevSender writes messages to disk
// for local development. Both satisfy dispatch.MailSender.
package mail
