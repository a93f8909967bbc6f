// Package responder invokes the external model backend that produces
// replies. The provider (openai or anthropic) and model are chosen in
// config; both backends receive the same instructions and composed
// prompt, so they are interchangeable at runtime.
package responder
