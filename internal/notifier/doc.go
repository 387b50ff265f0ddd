// Package notifier delivers alerts asynchronously.
//
// Alerts are queued and sent by a small worker pool so the monitor engine
// never waits on Telegram or SMTP. Each alert is attempted once: a failed
// send is logged, published on the event bus and dropped. Telegram sends
// share a token-bucket limiter.
package notifier
