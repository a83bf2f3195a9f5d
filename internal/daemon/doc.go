// Package daemon runs the kthgpt worker as a single long-lived process.
//
// It wires configuration, the store, the dispatch backend, and the workflow
// manager into one lifecycle with flock-based locking so only one worker
// owns a data directory. The daemon also exposes job listing and database
// health for the CLI.
//
// Keep orchestration logic here: stage work lives in pipeline and the claim
// loop in workflow, while the daemon handles startup, shutdown, and status.
package daemon
