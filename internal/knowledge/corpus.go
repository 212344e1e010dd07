package knowledge

import (
	"embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed corpus/*.yaml
var corpusFS embed.FS

type corpusFile struct {
	Passages []Document `yaml:"passages"`
}

// BundledCorpus returns the store policies shipped with the binary.
func BundledCorpus() ([]Document, error) {
	b, err := corpusFS.ReadFile("corpus/policies.yaml")
	if err != nil {
		return nil, fmt.Errorf("knowledge: read bundled corpus: %w", err)
	}
	return parseCorpus(b)
}

func parseCorpus(b []byte) ([]Document, error) {
	var f corpusFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("knowledge: parse corpus: %w", err)
	}
	return f.Passages, nil
}
