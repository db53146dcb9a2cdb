// Package scheduler runs printdesk's background loop.
//
// # Lifecycle
//
// Start performs startup reconciliation (silently advancing recurring
// tasks whose next occurrence was missed while the process was down),
// then registers a single cron entry that fires the tick at a fixed
// interval. The tick is strictly sequential: an overlap guard skips a
// firing if the previous tick is still running, so one tick always
// completes fully, including persistence, before the next begins.
//
// # Tick
//
// Each tick sweeps due tasks (render, record history, remove one-shots,
// advance recurring) and then polls every enabled listener whose interval
// has elapsed. Failures are isolated per task and per listener: nothing
// that goes wrong with one item aborts the tick for the others.
package scheduler
