// Package prompts builds the language-specific prompt text sent to the AI
// backend: lecture questions, per-chunk transcript summaries, and the final
// lecture overview. Builders are pure functions of their inputs.
package prompts
