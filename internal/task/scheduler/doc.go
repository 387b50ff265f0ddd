// Package scheduler triggers named jobs on cron or interval schedules.
//
// Every schedule skips a trigger while its previous run is still in flight,
// so a slow run never overlaps the next one of the same name.
package scheduler
