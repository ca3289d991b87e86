package pipeline

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bulkmart/go-aggregator/taxonomy"
)

func TestTermsForLeafOrderAndDedup(t *testing.T) {
	leaf := taxonomy.Leaf{
		Key:   "machinery/pumps/centrifugal",
		Name:  "Centrifugal Pumps",
		Path:  []string{"Machinery", "Pumps"},
		Terms: []string{"centrifugal water pump", "Centrifugal Pumps"},
	}

	terms := TermsForLeaf(leaf, 0)

	// The plain leaf name always leads
	assert.Equal(t, "Centrifugal Pumps", terms[0])
	// The duplicate declared term was dropped case-insensitively
	assert.Equal(t, "centrifugal water pump", terms[1])

	seen := make(map[string]bool)
	for _, term := range terms {
		key := strings.ToLower(term)
		assert.False(t, seen[key], "duplicate term %q", term)
		seen[key] = true
	}
}

func TestTermsForLeafRotatesModifiers(t *testing.T) {
	leaf := taxonomy.Leaf{Key: "machinery/welding", Name: "MIG Welding Machines"}

	first := TermsForLeaf(leaf, 0)
	second := TermsForLeaf(leaf, 1)

	assert.Equal(t, len(first), len(second))
	// Same pool, different walk order
	assert.NotEqual(t, first[1], second[1])
	assert.ElementsMatch(t, first, second)
}

func TestTermsForLeafQualifiesShortNames(t *testing.T) {
	leaf := taxonomy.Leaf{Key: "machinery/pumps/parts", Name: "Parts", Path: []string{"Machinery", "Pumps"}}
	terms := TermsForLeaf(leaf, 0)
	assert.Equal(t, "Pumps Parts", terms[0])
}

func TestRandomToken(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	token := RandomToken(r)
	assert.Len(t, token, 2)
}
