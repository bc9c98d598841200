package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Contains(t, c.CategoryTerms, "hazelnut spreads")
	assert.Contains(t, c.FoodDescriptions, "hazelnut spread with cocoa")
	for _, term := range c.CategoryTerms {
		assert.NotEmpty(t, term)
	}
}

func TestLoad(t *testing.T) {
	t.Run("empty path uses embedded corpus", func(t *testing.T) {
		c, err := Load("")
		require.NoError(t, err)
		assert.NotEmpty(t, c.FoodDescriptions)
	})

	t.Run("file override", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "corpus.yaml")
		data := "category_terms:\n  - teas\n  - \"  \"\nfood_descriptions:\n  - green tea\n"
		require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

		c, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"teas"}, c.CategoryTerms)
		assert.Equal(t, []string{"green tea"}, c.FoodDescriptions)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{"valid", "category_terms: [teas]\nfood_descriptions: [green tea]\n", false},
		{"no categories", "food_descriptions: [green tea]\n", true},
		{"no descriptions", "category_terms: [teas]\n", true},
		{"malformed", "category_terms: [teas\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Errorf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
