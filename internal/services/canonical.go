package services

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/skillmatch/skillmatch-backend/internal/types"
)

// salaryBucketSize groups salary minimums into 10k bands so trivially
// different offers still collapse to the same canonical hash.
const salaryBucketSize = 10000

// NormalizeField lowercases and collapses all runs of whitespace to a single
// space. The dedup contract depends on this being stable: identical postings
// that differ only in casing or spacing must hash identically.
func NormalizeField(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// SalaryBucket maps a posting's salary floor to its 10k band. Postings with
// no salary share bucket 0.
func SalaryBucket(salaryMin *int) int {
	if salaryMin == nil || *salaryMin <= 0 {
		return 0
	}
	return *salaryMin / salaryBucketSize
}

// CanonicalHash fingerprints a posting for exact-duplicate detection.
func CanonicalHash(p *types.JobPosting) string {
	h := sha256.New()
	h.Write([]byte(NormalizeField(p.Title)))
	h.Write([]byte{'|'})
	h.Write([]byte(NormalizeField(p.Company)))
	h.Write([]byte{'|'})
	h.Write([]byte(NormalizeField(p.Location)))
	h.Write([]byte{'|'})
	h.Write([]byte(bucketString(SalaryBucket(p.SalaryMin))))
	return hex.EncodeToString(h.Sum(nil))
}

func bucketString(bucket int) string {
	// small positive ints only
	if bucket == 0 {
		return "0"
	}
	var b [20]byte
	i := len(b)
	for bucket > 0 {
		i--
		b[i] = byte('0' + bucket%10)
		bucket /= 10
	}
	return string(b[i:])
}

// ContentHash addresses a piece of normalized text for the embedding cache.
// Identical normalized text always maps to the same key, across owners; the
// sharing is intentional for cost control.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(NormalizeField(text)))
	return hex.EncodeToString(sum[:])
}
