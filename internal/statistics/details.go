package statistics

import (
	"fmt"
	"strings"
)

const (
	// NoProductsPlaceholder is the detail text of a creator without resolved items
	NoProductsPlaceholder = "暂无商品"
	detailSeparator       = "，"
)

type detailEntry struct {
	name     string
	supplier string
	quantity int
}

// detailBuilder merges line items by product name, keeping first-seen order
type detailBuilder struct {
	index   map[string]int
	entries []detailEntry
}

func newDetailBuilder() *detailBuilder {
	return &detailBuilder{index: make(map[string]int)}
}

func (b *detailBuilder) add(name, supplier string, quantity int) {
	if name == "" {
		return
	}
	if i, ok := b.index[name]; ok {
		b.entries[i].quantity += quantity
		if b.entries[i].supplier == "" {
			b.entries[i].supplier = supplier
		}
		return
	}
	b.index[name] = len(b.entries)
	b.entries = append(b.entries, detailEntry{name: name, supplier: supplier, quantity: quantity})
}

func (b *detailBuilder) String() string {
	if len(b.entries) == 0 {
		return NoProductsPlaceholder
	}
	parts := make([]string, 0, len(b.entries))
	for _, e := range b.entries {
		part := fmt.Sprintf("%s(%d件)", e.name, e.quantity)
		if e.supplier != "" {
			part += " - " + e.supplier
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, detailSeparator)
}
