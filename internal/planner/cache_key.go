package planner

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"log"
	"strings"

	"github.com/popspot/ragengine"
)

// cacheKey creates a stable key for caching planner results. The registered
// strategy set is part of the key so a registry change invalidates old plans.
func (p *Planner) cacheKey(req ragengine.Requirement) string {
	cacheableInput := struct {
		Query      string `json:"query"`
		Complexity string `json:"complexity"`
		Strategies string `json:"strategies"`
	}{
		Query:      req.ProcessedQuery,
		Complexity: string(req.ComplexityLevel),
		Strategies: strings.Join(p.registry.IDs(), ","),
	}

	inputBytes, err := json.Marshal(cacheableInput)
	if err != nil {
		log.Printf("Failed to marshal planner input for cache key: %v", err)
		// Fallback to a simpler key if marshalling fails
		return "planner:" + req.ProcessedQuery
	}

	hasher := sha1.New()
	hasher.Write(inputBytes)
	return "planner:" + hex.EncodeToString(hasher.Sum(nil))
}
