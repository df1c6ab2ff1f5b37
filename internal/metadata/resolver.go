// Package metadata maps token ids to descriptor locations. Purely derived
// from the id and configured base locations; the engine never consults it.
package metadata

import (
	"math/big"
)

// Resolver derives a token's metadata URI. When ReservedBaseURI is set,
// ids above the public boundary resolve against it instead (the
// range-conditional variant); otherwise a single base applies to all ids.
type Resolver struct {
	BaseURI         string
	ReservedBaseURI string
	PublicBoundary  *big.Int // highest public id; ids above are reserved-range
}

func NewResolver(baseURI string) *Resolver {
	return &Resolver{BaseURI: baseURI}
}

func NewRangeResolver(baseURI, reservedBaseURI string, publicBoundary *big.Int) *Resolver {
	return &Resolver{
		BaseURI:         baseURI,
		ReservedBaseURI: reservedBaseURI,
		PublicBoundary:  publicBoundary,
	}
}

// TokenURI returns base + decimal id.
func (r *Resolver) TokenURI(id *big.Int) string {
	base := r.BaseURI
	if r.ReservedBaseURI != "" && r.PublicBoundary != nil && id.Cmp(r.PublicBoundary) > 0 {
		base = r.ReservedBaseURI
	}
	return base + id.String()
}
