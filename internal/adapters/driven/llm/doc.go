// Package llm adapts a driven.LLMService into enrichment analyzers.
//
// Provider clients live in the ollama and openai subpackages. The Summariser
// here builds the prompt, paces requests and parses the model's JSON reply.
package llm
