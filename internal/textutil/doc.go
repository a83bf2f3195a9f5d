// Package textutil holds small text helpers shared by the pipeline: word
// chunking for summarization, filesystem-safe tokens, and display truncation.
package textutil
