// Command kthgpt manages lectures, answers questions about them, and runs the
// background worker that downloads, transcribes, and summarizes recordings.
//
// Commands talk to the SQLite database directly. Processing is asynchronous:
// `kthgpt process` queues the first stage job and `kthgpt run` works the queue
// until interrupted.
package main
