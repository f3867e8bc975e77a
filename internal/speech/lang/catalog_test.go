package lang

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveBuiltin(t *testing.T) {
	c := NewCatalog()

	tests := []struct {
		language string
		want     string
	}{
		{"spanish", "spa_Latn"},
		{"Spanish", "spa_Latn"},
		{"  farsi  ", "pes_Arab"},
		{"persian", "pes_Arab"},
		{"en", "eng_Latn"},
		{"mandarin", "zho_Hans"},
	}

	for _, tt := range tests {
		t.Run(tt.language, func(t *testing.T) {
			got, ok := c.Resolve(tt.language)
			if !ok {
				t.Fatalf("Resolve(%q): not found", tt.language)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.language, got, tt.want)
			}
		})
	}

	if _, ok := c.Resolve("klingon"); ok {
		t.Error("Resolve(klingon) unexpectedly succeeded")
	}
}

func TestMergeOverrides(t *testing.T) {
	c := NewCatalog()
	c.Merge(map[string]string{"Swahili": "swh_Latn", "spanish": "spa_Latn_custom"})

	if got, _ := c.Resolve("swahili"); got != "swh_Latn" {
		t.Errorf("merged language = %q, want swh_Latn", got)
	}
	if got, _ := c.Resolve("spanish"); got != "spa_Latn_custom" {
		t.Errorf("override = %q, want spa_Latn_custom", got)
	}
}

func TestLoaderLoadAll(t *testing.T) {
	dir := t.TempDir()
	content := "languages:\n  swahili: swh_Latn\n  amharic: amh_Ethi\n"
	if err := os.WriteFile(filepath.Join(dir, "extra.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewCatalog()
	l := NewLoader(dir, c)
	if err := l.LoadAll(); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}

	if !c.Has("swahili") || !c.Has("amharic") {
		t.Error("loaded languages missing from catalog")
	}
	if !c.Has("english") {
		t.Error("builtin languages lost after load")
	}
}

func TestLoaderMissingDirIsNoop(t *testing.T) {
	c := NewCatalog()
	l := NewLoader(filepath.Join(t.TempDir(), "absent"), c)
	if err := l.LoadAll(); err != nil {
		t.Fatalf("LoadAll on missing dir: %v", err)
	}
}

func TestLoaderRejectsBadYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("languages: [not a map"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(dir, NewCatalog())
	if err := l.LoadAll(); err == nil {
		t.Error("expected error for malformed YAML")
	}
}
