// Package llm is an OpenAI-compatible chat client (OpenRouter by default)
// used to write alt text for images.
//
// DescribeImage sends a prompt with the image inlined as a data URL.
// HealthCheck is a cheap text-only round trip for preflight.
//
// Calls retry on HTTP 408/429/5xx, network timeouts, and empty completions
// with exponential backoff (1s doubling to 10s, four attempts by default).
// A Retry-After header overrides the computed delay.
package llm
