// Package ffprobe inspects downloaded recordings with ffprobe's JSON output.
//
// The download stage uses Prober to confirm a remuxed lecture carries an
// audio track before it is handed to the transcriber.
package ffprobe
