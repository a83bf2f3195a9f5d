// Package query answers free-form questions about a lecture from its stored
// summary, reusing earlier answers to the same question unless the caller
// asks for a fresh one.
package query
