package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetector_Detect(t *testing.T) {
	classifier := newTestClassifier(t)
	detector := NewDetector(classifier, newTestExtractor(classifier))

	t.Run("food product page", func(t *testing.T) {
		doc := newDocument("https://shop.example/nutella", "Nutella Hazelnut Spread 350g | Tesco").
			addMeta(ogTitleMeta, "Nutella Hazelnut Spread 350g")

		got := detector.Detect(doc)

		assert.Equal(t, "https://shop.example/nutella", got.URL)
		assert.Equal(t, "Nutella Hazelnut Spread 350g | Tesco", got.Title)
		assert.True(t, got.IsFoodPage)
		assert.NotEmpty(t, got.Categories)
		require.Len(t, got.Candidates, 1)
		assert.Equal(t, "Nutella Hazelnut Spread", got.Candidates[0].CleanedText)
	})

	t.Run("empty page has non-nil lists", func(t *testing.T) {
		got := detector.Detect(newDocument("https://shop.example/empty", ""))

		assert.False(t, got.IsFoodPage)
		assert.NotNil(t, got.Categories)
		assert.Empty(t, got.Categories)
		assert.NotNil(t, got.Candidates)
		assert.Empty(t, got.Candidates)
	})
}
