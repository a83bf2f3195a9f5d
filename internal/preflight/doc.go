// Package preflight provides readiness checks for external services
// and filesystem paths that kthgpt depends on.
//
// These checks run in two contexts:
//   - The "kthgpt run" command calls RunAll before starting the worker and
//     refuses to start when a required check fails.
//   - The "kthgpt check" command prints every result, including the binary
//     checks from CheckSystemDeps.
//
// Dispatch checks only run when the Redis backend is selected.
package preflight
