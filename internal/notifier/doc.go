// Package notifier delivers status-change and failure messages to the
// configured Telegram chat.
//
// # Delivery
//
// Each call sends synchronously through a transport.Sender, bounded by a
// per-send timeout and a token-bucket rate limit. Failures are returned as
// homework.DeliveryFailed; the poll loop logs them and keeps running.
//
// # History
//
// A small in-memory ring of recent attempts is kept for debugging. It is not
// persisted.
package notifier
