package corpus

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/food_corpus.yaml
var defaultCorpus []byte

// Corpus is the static reference data the food-page classifier is built from
type Corpus struct {
	CategoryTerms    []string `yaml:"category_terms"`
	FoodDescriptions []string `yaml:"food_descriptions"`
}

// Default returns the corpus compiled into the binary
func Default() (*Corpus, error) {
	return Parse(defaultCorpus)
}

// Load reads a corpus file, falling back to the embedded corpus when path is empty
func Load(path string) (*Corpus, error) {
	if path == "" {
		return Default()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML corpus data. Blank entries are dropped.
func Parse(b []byte) (*Corpus, error) {
	var c Corpus
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse corpus yaml: %w", err)
	}
	c.CategoryTerms = compact(c.CategoryTerms)
	c.FoodDescriptions = compact(c.FoodDescriptions)

	if len(c.CategoryTerms) == 0 {
		return nil, fmt.Errorf("corpus has no category_terms")
	}
	if len(c.FoodDescriptions) == 0 {
		return nil, fmt.Errorf("corpus has no food_descriptions")
	}
	return &c, nil
}

func compact(list []string) []string {
	out := list[:0]
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
