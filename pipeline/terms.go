package pipeline

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/bulkmart/go-aggregator/taxonomy"
)

// Modifier pool for top-up query expansion. The plain leaf name goes first;
// modifiers only widen the net once the direct query stops yielding.
var termModifiers = []string{
	"industrial",
	"commercial",
	"wholesale",
	"bulk",
	"supplier",
	"manufacturer",
	"heavy duty",
	"price",
}

// TermsForLeaf builds the ordered query pool for one coverage pass over a
// leaf. Leaf-declared terms beat generated ones, and the modifier walk is
// rotated per attempt so consecutive cycles do not replay the same prefix.
func TermsForLeaf(leaf taxonomy.Leaf, attempt int) []string {
	out := make([]string, 0, len(leaf.Terms)+len(termModifiers)+1)
	seen := make(map[string]bool)

	add := func(term string) {
		term = strings.TrimSpace(term)
		key := strings.ToLower(term)
		if term == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, term)
	}

	add(leaf.QueryName())
	for _, t := range leaf.Terms {
		add(t)
	}

	base := leaf.QueryName()
	n := len(termModifiers)
	for i := 0; i < n; i++ {
		mod := termModifiers[(attempt+i)%n]
		add(fmt.Sprintf("%s %s", base, mod))
	}
	return out
}

// RandomToken returns a short numeric suffix used to perturb queries for
// leaves stuck below target after the modifier pool is exhausted
func RandomToken(r *rand.Rand) string {
	return fmt.Sprintf("%02d", r.Intn(100))
}
