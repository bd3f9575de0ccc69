package santa

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
)

// ErrInsufficientCohort is returned when fewer than two members take part.
var ErrInsufficientCohort = errors.New("not enough participants")

// Derange returns a permutation of [0, n) with no fixed points: out[i] is the
// recipient of i. The result depends only on seed and n.
//
// The members are laid out in the cyclic order of a seeded random
// permutation and each one gives to its predecessor in that cycle.
func Derange(seed int64, n int) ([]int, error) {
	if n < 2 {
		return nil, fmt.Errorf("%w: %d", ErrInsufficientCohort, n)
	}
	rnd := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	order := rnd.Perm(n)

	out := make([]int, n)
	for k, giver := range order {
		out[giver] = order[(k-1+n)%n]
	}
	return out, nil
}

// Pair maps every member of items to its recipient. items must not contain
// duplicates; their order is part of the input.
func Pair[T comparable](seed int64, items []T) (map[T]T, error) {
	idx, err := Derange(seed, len(items))
	if err != nil {
		return nil, err
	}
	pairs := make(map[T]T, len(items))
	for i, j := range idx {
		if _, dup := pairs[items[i]]; dup {
			return nil, fmt.Errorf("duplicate member %v", items[i])
		}
		pairs[items[i]] = items[j]
	}
	return pairs, nil
}

// CohortKey identifies a (year, cohort) pair. Any change to the membership
// yields a different key.
func CohortKey(year int, ids []int64) string {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)

	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.FormatInt(id, 10)
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d %s", year, strings.Join(parts, ","))))
	return hex.EncodeToString(sum[:])[:16]
}
