// Package cli contains the Cobra commands of the pqueue CLI. Each command
// opens the runtime over the configured data directory, acts on one queue
// and closes everything again, so invocations never hold storage open.
package cli
