// Meridian is an OpenAI-compatible inference gateway that routes chat
// completion requests across many upstream LLM providers.
//
// It exposes a single /v1/chat/completions endpoint and, per request,
// walks preferred, free, paid, and emergency routing tiers, falling back
// on classified upstream failures, enforcing per-provider minute budgets,
// and remembering provider health across requests.
//
// Usage:
//
//	# Start the gateway with the default configuration file
//	meridian run
//
//	# Start with a custom configuration file
//	meridian run --config /etc/meridian/meridian.yaml
//
//	# Override the listen address
//	meridian run --listen 0.0.0.0:8080
//
//	# Check a configuration file without starting the gateway
//	meridian validate
//
//	# Show version information
//	meridian version
package main

func main() {
	Execute()
}
