package templates

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vango-dev/vprompt/internal/config"
	"github.com/vango-dev/vprompt/internal/errors"
	"github.com/vango-dev/vprompt/internal/treefile"
	"github.com/vango-dev/vprompt/pkg/reconcile"
)

func TestGet(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"minimal", false},
		{"log", false},
		{"agent", false},
		{"nonexistent", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := Get(tt.name)
			if tt.wantErr {
				var pe *errors.PromptError
				if !stderrors.As(err, &pe) || pe.Code != "VP191" {
					t.Fatalf("Get() error = %v, want VP191", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if tmpl.Name != tt.name {
				t.Errorf("Name = %q, want %q", tmpl.Name, tt.name)
			}
		})
	}
}

func TestList(t *testing.T) {
	if diff := cmp.Diff([]string{"agent", "log", "minimal"}, List()); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
}

// TestTemplatesProduceWorkingProjects creates every template and checks
// that the config validates and the tree reconciles.
func TestTemplatesProduceWorkingProjects(t *testing.T) {
	configs := map[string]Config{
		"defaults": {ProjectName: "demo"},
		"bucket":   {ProjectName: "demo", Description: "Be brief.", MaxTokens: 256, Tokenizer: "cl100k_base", Bucket: "prompts"},
	}
	for _, name := range List() {
		for cname, cfg := range configs {
			t.Run(name+"/"+cname, func(t *testing.T) {
				dir := t.TempDir()
				tmpl, _ := Get(name)
				if err := tmpl.Create(dir, cfg); err != nil {
					t.Fatalf("Create() error = %v", err)
				}

				c, err := config.LoadFile(filepath.Join(dir, config.ConfigFileName))
				if err != nil {
					t.Fatalf("LoadFile() error = %v", err)
				}
				if err := c.Validate(); err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				if c.MaxTokens != cfg.MaxTokens {
					t.Errorf("MaxTokens = %d, want %d", c.MaxTokens, cfg.MaxTokens)
				}
				if cfg.Bucket != "" && c.Archive.Bucket != cfg.Bucket {
					t.Errorf("Archive.Bucket = %q, want %q", c.Archive.Bucket, cfg.Bucket)
				}
				if cfg.Bucket == "" && c.Archive.Dir != "snapshots" {
					t.Errorf("Archive.Dir = %q, want snapshots", c.Archive.Dir)
				}

				doc, err := treefile.LoadFile(filepath.Join(dir, "prompt.yaml"))
				if err != nil {
					t.Fatalf("treefile.LoadFile() error = %v", err)
				}
				root, err := doc.Element()
				if err != nil {
					t.Fatalf("Element() error = %v", err)
				}
				if _, err := reconcile.New(root).Reconcile(t.Context()); err != nil {
					t.Fatalf("Reconcile() error = %v", err)
				}
			})
		}
	}
}

func TestDescriptionReplacesDefaultText(t *testing.T) {
	dir := t.TempDir()
	tmpl, _ := Get("minimal")
	if err := tmpl.Create(dir, Config{ProjectName: "demo", Description: "Be brief."}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "prompt.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `text: "Be brief."`) {
		t.Errorf("prompt.yaml missing description:\n%s", data)
	}
	if strings.Contains(string(data), "helpful assistant") {
		t.Errorf("prompt.yaml kept the default text:\n%s", data)
	}
}

func TestCreateKeepsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "prompt.yaml")
	if err := os.WriteFile(existing, []byte("mine"), 0644); err != nil {
		t.Fatal(err)
	}

	tmpl, _ := Get("log")
	err := tmpl.Create(dir, Config{ProjectName: "demo"})
	var pe *errors.PromptError
	if !stderrors.As(err, &pe) || pe.Code != "VP192" {
		t.Fatalf("Create() error = %v, want VP192", err)
	}

	data, _ := os.ReadFile(existing)
	if string(data) != "mine" {
		t.Errorf("prompt.yaml = %q, want it untouched", data)
	}
	if _, err := os.Stat(filepath.Join(dir, config.ConfigFileName)); !os.IsNotExist(err) {
		t.Errorf("vprompt.json was written despite the conflict")
	}
}

func TestPaths(t *testing.T) {
	tmpl, _ := Get("agent")
	if diff := cmp.Diff([]string{"prompt.yaml", "vprompt.json"}, tmpl.Paths()); diff != "" {
		t.Errorf("Paths() mismatch (-want +got):\n%s", diff)
	}
}
