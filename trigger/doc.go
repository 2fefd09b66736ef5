// Package trigger implements the manager that turns chat lifecycle events
// into workflow runs. It subscribes to the event bus, matches each event
// against every enabled agent of the active chat (including every-x-messages
// counter thresholds), enforces the single-flight guarantee, and starts the
// workflow executor without blocking the bus. System-sourced events never
// reach the matching logic, so agents cannot retrigger each other in an
// uncontrolled cascade.
package trigger
