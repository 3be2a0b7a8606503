// Package engine provides the reasoning core of an AI coding assistant:
// a model-agnostic loop that turns a user request into a bounded sequence
// of LLM turns and tool-call orchestrations, streamed to a UI sink and
// observed through a deduplicated event feed.
//
// # Architecture
//
// A reasoning.Loop wires together the package set under this module:
//
//	context      bounded conversation history
//	intent       text-response classification oracle
//	llms         model-client providers (Anthropic, OpenAI, Gemini, Ollama)
//	orchestrator dependency-aware tool-call execution
//	streaming    bounded multi-stream chunk delivery with backpressure
//	events       deduplicated event fan-out to UI/log/metric subscribers
//	resource     named resource pools behind the orchestrator
//	depgraph     topological ordering of a request batch
//	planner      concurrency-safe phase grouping over a dependency graph
//	breaker      per-failure-category circuit breaking
//	config       YAML + environment configuration loading
//	tools        the built-in tool set and its registry
//	databases    vector-store backed context retrieval
//
// # Using as a Go Library
//
//	import (
//	    "github.com/reasoncore/engine/reasoning"
//	    "github.com/reasoncore/engine/llms"
//	)
//
// # Status
//
// This module implements the reasoning core only; it is not a standalone
// server or CLI product.
package engine
