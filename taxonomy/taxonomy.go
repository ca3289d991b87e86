package taxonomy

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"
)

// Leaf is one terminal taxonomy category. Key is the stable identifier
// stamped into listing provenance; Terms seed the query pool for top-ups.
type Leaf struct {
	Key   string   `json:"key"`
	Name  string   `json:"name"`
	Path  []string `json:"path"`
	Terms []string `json:"terms,omitempty"`
}

type Taxonomy struct {
	Leaves []Leaf `json:"leaves"`
}

// Load reads the taxonomy file and rejects duplicates and non-leaf noise
func Load(file string) (*Taxonomy, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("TAXONOMY_OPENERR: (%s) %v", file, err)
	}
	defer f.Close()

	var tx Taxonomy
	if err = json.NewDecoder(f).Decode(&tx); err != nil {
		return nil, fmt.Errorf("TAXONOMY_DECODEERR: (%s) %v", file, err)
	}

	seen := make(map[string]bool, len(tx.Leaves))
	leaves := make([]Leaf, 0, len(tx.Leaves))
	for _, leaf := range tx.Leaves {
		if leaf.Key == "" || seen[leaf.Key] {
			continue
		}
		seen[leaf.Key] = true
		leaves = append(leaves, leaf)
	}
	tx.Leaves = leaves

	log.Printf("TAXONOMY_LOAD: (%s) %d leaves\n", file, len(tx.Leaves))
	return &tx, nil
}

// Order returns the iteration order for one cycle. The offset rotation
// spreads repeated runs across the tree instead of hammering the head;
// shuffle trades that determinism for uniform wear.
func (tx *Taxonomy) Order(offset int, shuffle bool) []Leaf {
	n := len(tx.Leaves)
	if n == 0 {
		return nil
	}
	out := make([]Leaf, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, tx.Leaves[(offset+i)%n])
	}
	if shuffle {
		r := rand.New(rand.NewSource(time.Now().UnixNano()))
		r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	}
	return out
}

// QueryName is the search phrase for a leaf: the leaf name qualified by
// its parent when the name alone is too generic ("Parts", "Accessories")
func (l Leaf) QueryName() string {
	name := strings.TrimSpace(l.Name)
	if len(name) >= 10 || len(l.Path) == 0 {
		return name
	}
	return strings.TrimSpace(l.Path[len(l.Path)-1] + " " + name)
}
