// Package tokenizer provides token counting for buffer release and window
// extraction, with a tiktoken implementation and a chars-per-token fallback.
package tokenizer
