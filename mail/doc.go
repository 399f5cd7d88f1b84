// Package mail renders and delivers the account emails the Engine asks for:
// email verification, password reset and password-changed confirmations.
//
// Templates are pongo2 HTML files embedded in the binary. Notifier implements
// authcore.Notifier on top of any Sender; SMTPSender talks to a relay and
// LogSender only writes to a slog.Logger, which is what local setups use.
package mail
