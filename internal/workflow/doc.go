// Package workflow runs the worker side of the lecture pipeline.
//
// The Manager claims jobs from a jobs.Source, runs each through the pipeline
// under a per-job correlation id, and acknowledges the outcome. While a job
// runs, heartbeats on the job and on its analysis attempt keep the reaper
// away; when a worker dies, its attempt is moved to failure and the job is
// requeued so the redelivery is acknowledged as a skip.
package workflow
