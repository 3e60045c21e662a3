// Package dispatcher executes structured deploy, migrate and stop calls
// against a snapshot of the edge inventory and renders their status messages.
package dispatcher
