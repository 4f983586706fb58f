package catalogue

import (
	"cmp"
	"encoding/binary"
	"math"
	"slices"

	"github.com/cespare/xxhash/v2"
)

// WriteDigest feeds the catalogue contents into d in a canonical order, so two
// catalogues loaded from the same data produce the same digest.
func (c *Catalogue) WriteDigest(d *xxhash.Digest) {
	var buf [8]byte
	putUint := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = d.Write(buf[:])
	}
	putString := func(s string) {
		putUint(uint64(len(s)))
		_, _ = d.WriteString(s)
	}

	putUint(uint64(len(c.stops)))
	for _, s := range c.stops {
		putString(s.Name)
		putUint(math.Float64bits(s.Coords.Lat))
		putUint(math.Float64bits(s.Coords.Lng))
	}

	putUint(uint64(len(c.routes)))
	for _, r := range c.routes {
		putString(r.Name)
		if r.Cyclic {
			putUint(1)
		} else {
			putUint(0)
		}
		putUint(uint64(len(r.Stops)))
		for _, id := range r.Stops {
			putUint(uint64(id))
		}
	}

	pairs := make([]stopPair, 0, len(c.distances))
	for p := range c.distances {
		pairs = append(pairs, p)
	}
	slices.SortFunc(pairs, func(a, b stopPair) int {
		if a.from != b.from {
			return cmp.Compare(a.from, b.from)
		}
		return cmp.Compare(a.to, b.to)
	})

	putUint(uint64(len(pairs)))
	for _, p := range pairs {
		putUint(uint64(p.from))
		putUint(uint64(p.to))
		putUint(uint64(c.distances[p]))
	}
}
