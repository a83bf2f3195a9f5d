// Package analysis owns the lifecycle rules of a lecture processing attempt.
//
// An attempt starts in downloading, moves through idle between stages,
// and ends idle at progress 100 or in failure. Failure is terminal: a retry
// is a new attempt. The Machine checks rules in Go and delegates each write to
// a compare-and-swap update so concurrent writers cannot both win.
package analysis
