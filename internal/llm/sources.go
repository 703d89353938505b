// Package llm describes the LLM providers known by kage.
package llm

import "os"

// Source is an LLM provider the user interface can offer.
type Source struct {
	ID    string
	Label string
	// EnvVar is the environment variable that holds (or would hold) the API key.
	EnvVar string
	HasKey bool
	// Supported is false for providers that can be listed but not used yet.
	Supported bool
	Models    []string
}

type sourceInfo struct {
	id        string
	label     string
	envVars   []string
	supported bool
	models    []string
}

var knownSources = []sourceInfo{
	{
		id:        "openai",
		label:     "ChatGPT",
		envVars:   []string{"OPENAI_API_KEY", "OPENAI_APIKEY"},
		supported: true,
		models:    []string{"gpt-4o-mini", "gpt-4o", "gpt-4.1-mini", "gpt-4.1"},
	},
	{
		id:      "chatly",
		label:   "Chatly",
		envVars: []string{"CHATLY_API_KEY"},
	},
	{
		id:      "v0",
		label:   "v0.dev",
		envVars: []string{"V0_API_KEY", "VERCEL_V0_API_KEY"},
	},
}

// Sources returns the known providers, checking the environment for their keys.
func Sources() []Source {
	sources := make([]Source, 0, len(knownSources))
	for _, info := range knownSources {
		src := Source{
			ID:        info.id,
			Label:     info.label,
			EnvVar:    info.envVars[0],
			Supported: info.supported,
			Models:    append([]string{}, info.models...),
		}
		for _, env := range info.envVars {
			if os.Getenv(env) != "" {
				src.EnvVar = env
				src.HasKey = true
				break
			}
		}
		sources = append(sources, src)
	}

	return sources
}

// Supported returns true if the provider id can be used for completions.
func Supported(id string) bool {
	for _, info := range knownSources {
		if info.id == id {
			return info.supported
		}
	}
	return false
}
