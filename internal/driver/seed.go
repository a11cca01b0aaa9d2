package driver

import (
	"fmt"
	"hash/fnv"
)

// SeedPolicy decides the seed handed to each model in a batch.
type SeedPolicy string

const (
	// SeedFixed hands every model the same base seed.
	SeedFixed SeedPolicy = "fixed"
	// SeedPerModel mixes the model identifier into the base seed, so each
	// model gets its own stable seed regardless of registry order.
	SeedPerModel SeedPolicy = "per-model"
)

func ParseSeedPolicy(s string) (SeedPolicy, error) {
	switch p := SeedPolicy(s); p {
	case SeedFixed, SeedPerModel:
		return p, nil
	default:
		return "", fmt.Errorf("unknown seed policy %q (must be fixed or per-model)", s)
	}
}

// Seed is computed from scratch on every call.
func (p SeedPolicy) Seed(base int64, model string) int64 {
	if p != SeedPerModel {
		return base
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(model))
	return int64((uint64(base) ^ h.Sum64()) & 0x7fffffff)
}
