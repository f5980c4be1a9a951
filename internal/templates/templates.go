package templates

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"text/template"

	"github.com/vango-dev/vprompt/internal/errors"
)

// Config contains template configuration.
type Config struct {
	// ProjectName is the name of the project.
	ProjectName string

	// Description is written as the root system text.
	Description string

	// MaxTokens is the prompt token budget written to vprompt.json.
	MaxTokens int

	// Tokenizer names the tokenizer written to vprompt.json.
	Tokenizer string

	// Bucket enables S3 archiving when set. Otherwise snapshots are
	// archived under the local "snapshots" directory.
	Bucket string
}

// Template represents a project template.
type Template struct {
	// Name is the template name.
	Name string

	// Description describes the template.
	Description string

	// Files is a map of relative paths to file contents.
	Files map[string]string
}

// Scaffold files are parsed with [[ ]] delimiters so the tree documents
// can carry their own {{ }} templates verbatim.
const (
	leftDelim  = "[["
	rightDelim = "]]"
)

var templates = map[string]*Template{
	"minimal": minimalTemplate(),
	"log":     logTemplate(),
	"agent":   agentTemplate(),
}

// Get returns a template by name.
func Get(name string) (*Template, error) {
	tmpl, ok := templates[name]
	if !ok {
		return nil, errors.New("VP191").
			WithDetail("Template '" + name + "' not found").
			WithSuggestion("Available templates: agent, log, minimal")
	}
	return tmpl, nil
}

// List returns all available template names, sorted.
func List() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Paths returns the relative paths the template writes, sorted.
func (t *Template) Paths() []string {
	paths := make([]string, 0, len(t.Files))
	for p := range t.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Create generates a project from the template. Existing files are never
// overwritten; the first one found fails the whole call before anything
// is written.
func (t *Template) Create(dir string, cfg Config) error {
	if cfg.Tokenizer == "" {
		cfg.Tokenizer = "approx"
	}

	rendered := make(map[string][]byte, len(t.Files))
	for _, relPath := range t.Paths() {
		fullPath := filepath.Join(dir, relPath)
		if _, err := os.Stat(fullPath); err == nil {
			return errors.New("VP192").
				WithDetail(fullPath + " already exists").
				WithSuggestion("Choose an empty directory or remove the file")
		}

		tmpl, err := template.New(relPath).Delims(leftDelim, rightDelim).Parse(t.Files[relPath])
		if err != nil {
			return errors.Newf(errors.CategoryCLI, "invalid template %s: %v", relPath, err)
		}

		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, cfg); err != nil {
			return errors.Newf(errors.CategoryCLI, "template execute error %s: %v", relPath, err)
		}
		rendered[fullPath] = buf.Bytes()
	}

	for fullPath, data := range rendered {
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(fullPath, data, 0644); err != nil {
			return err
		}
	}
	return nil
}

const configFile = `{
  "maxTokens": [[.MaxTokens]],
  "separator": "\n",
  "tokenizer": "[[.Tokenizer]]",
  "logLevel": "info",
  "archive": {
[[- if .Bucket]]
    "bucket": "[[.Bucket]]",
    "prefix": "[[.ProjectName]]/"
[[- else]]
    "dir": "snapshots"
[[- end]]
  }
}
`

func minimalTemplate() *Template {
	return &Template{
		Name:        "minimal",
		Description: "A single static prompt",
		Files: map[string]string{
			"vprompt.json": configFile,
			"prompt.yaml": `# [[.ProjectName]]
root:
  fragment:
    - text: "[[if .Description]][[.Description]][[else]]You are a helpful assistant.[[end]]"
      weight: 10
    - text: Answer concisely.
`,
		},
	}
}

func logTemplate() *Template {
	return &Template{
		Name:        "log",
		Description: "A prompt that collects lines pumped from stdin",
		Files: map[string]string{
			"vprompt.json": configFile,
			"prompt.yaml": `# [[.ProjectName]]
#
# Try it:
#   printf 'compile\ntest\n' | vprompt inspect prompt.yaml
components:
  Log:
    state:
      title: Events
    data: lines
    max: 20
    render:
      chunk:
        - text: "{{.title}}:"
        - each: lines
          key: "{{.item}}"
          render: "- {{.item}}"
root:
  fragment:
    - text: "[[if .Description]][[.Description]][[else]]Summarize the events below.[[end]]"
      weight: 10
    - component: Log
      key: log
      weight: 0.5
      props:
        title: Recent events
`,
		},
	}
}

func agentTemplate() *Template {
	return &Template{
		Name:        "agent",
		Description: "Weighted sections with a shared component file",
		Files: map[string]string{
			"vprompt.json": configFile,
			"prompt.yaml": `# [[.ProjectName]]
components:
  Section:
    render:
      chunk:
        - text: "## {{.title}}"
        - slot: true
  Notes:
    data: notes
    max: 50
    render:
      each: notes
      key: "{{.index}}"
      render: "- {{.item}}"
root:
  fragment:
    - text: "[[if .Description]][[.Description]][[else]]You are an agent working in [[.ProjectName]].[[end]]"
      weight: 100
    - component: Section
      key: rules
      weight: 10
      props:
        title: Rules
      children:
        - Follow the instructions of the user.
        - Ask before destructive actions.
    - component: Section
      key: notes
      weight: 1
      props:
        title: Notes
      children:
        - component: Notes
`,
		},
	}
}
