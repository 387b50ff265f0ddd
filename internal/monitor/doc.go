// Package monitor evaluates tracked endpoints and decides when subscribers
// are told about it.
//
// Liveness alerts are edge-triggered: a subscriber hears about an endpoint
// only when its persisted status flips to down, or from down back to up.
// Certificate expiry warnings are level-triggered and repeat on every sweep
// while a certificate sits inside the warning window.
package monitor
