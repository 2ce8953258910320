// Package sources reads the optional YAML seed file that declares snippet
// sources at startup.
package sources

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var templateVariable = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// Loader handles loading and parsing of the seed file
type Loader struct {
	filePath string
	lookup   func(string) (string, bool)
}

// NewLoader creates a new seed file loader
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
		lookup:   os.LookupEnv,
	}
}

// Load reads and parses the seed file
func (l *Loader) Load() (File, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return File{}, fmt.Errorf("failed to read sources file: %w", err)
	}

	data = l.expandTemplateVariables(data)

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return File{}, fmt.Errorf("failed to parse sources yaml: %w", err)
	}

	return file, nil
}

// expandTemplateVariables substitutes {{NAME}} with the environment value.
// Unset variables become empty strings so secrets never leak as literals.
// Example: {{SNIP_TEAM_BUCKET}} -> "team-snippets"
func (l *Loader) expandTemplateVariables(data []byte) []byte {
	return templateVariable.ReplaceAllFunc(data, func(m []byte) []byte {
		name := strings.TrimSpace(string(m[2 : len(m)-2]))
		v, _ := l.lookup(name)
		return []byte(v)
	})
}
