package webtool

import "github.com/quaneh2/research-agent/agent"

// RegisterCustomTools wires the Brave search and direct-fetch executors
// into the dispatcher.
func RegisterCustomTools(d *agent.Dispatcher, braveAPIKey string) {
	search := NewSearchClient(braveAPIKey)
	fetch := NewFetcher()
	d.Register(agent.RegisteredTool{Definition: SearchDefinition(), Executor: search.Execute})
	d.Register(agent.RegisteredTool{Definition: FetchDefinition(), Executor: fetch.Execute})
}

// RegisterNativeTools wires the provider-side search and fetch executors
// into the dispatcher.
func RegisterNativeTools(d *agent.Dispatcher, apiKey, model string) {
	native := NewNativeTools(apiKey, model)
	d.Register(agent.RegisteredTool{Definition: SearchDefinition(), Executor: native.ExecuteSearch})
	d.Register(agent.RegisteredTool{Definition: FetchDefinition(), Executor: native.ExecuteFetch})
}
