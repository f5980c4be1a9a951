// Package templates provides project scaffolding for vprompt init.
//
// # Available Templates
//
//   - minimal: A single static prompt
//   - log: A prompt that collects lines pumped from stdin
//   - agent: Weighted sections with a shared component file
//
// Every template writes a vprompt.json and a prompt.yaml tree document.
//
// # Usage
//
//	tmpl, err := templates.Get("log")
//	if err != nil {
//	    return err
//	}
//	if err := tmpl.Create(projectDir, config); err != nil {
//	    return err
//	}
//
// # Template Variables
//
// Scaffold files use [[ ]] delimiters:
//
//	[[.ProjectName]]     - Name of the project
//	[[.Description]]     - Root system text
//	[[.MaxTokens]]       - Token budget
//	[[.Tokenizer]]       - Tokenizer name
//	[[.Bucket]]          - S3 archive bucket, if any
package templates
