// utils/securerandom.go
package utils

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrEmptyPool    = errors.New("no candidates to sample from")
	ErrInvalidCount = errors.New("sample count must be positive")
)

// pickupCodeAlphabet excludes visually ambiguous characters (0/O, 1/I).
const pickupCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// PickupCodeLength is the length of every generated pickup credential.
const PickupCodeLength = 8

// SecureRandomInt returns a uniform random integer in [0, max) drawn
// from crypto/rand. Out-of-range draws are rejected and retried so the
// result carries no modulo bias.
func SecureRandomInt(max int) (int, error) {
	if max <= 0 {
		return 0, fmt.Errorf("secure random: max must be positive, got %d", max)
	}
	if max == 1 {
		return 0, nil
	}

	// Smallest byte width that covers max, then reject values in the
	// tail that would wrap unevenly under the modulo.
	bytesNeeded := 1
	for limit := 256; limit < max; limit *= 256 {
		bytesNeeded++
	}
	maxValue := uint64(1) << (8 * uint(bytesNeeded))
	threshold := maxValue - (maxValue % uint64(max))

	buf := make([]byte, 8)
	for {
		if _, err := rand.Read(buf[8-bytesNeeded:]); err != nil {
			return 0, fmt.Errorf("secure random: read failed: %w", err)
		}
		value := binary.BigEndian.Uint64(buf)
		if value < threshold {
			return int(value % uint64(max)), nil
		}
		// rejected, draw again
	}
}

// SampleIndices picks k distinct indices in [0, n), each unordered
// k-subset equally likely. If k >= n every index is returned. The draw
// order is preserved in the result (index 0 was drawn first).
func SampleIndices(n, k int) ([]int, error) {
	if n <= 0 {
		return nil, ErrEmptyPool
	}
	if k <= 0 {
		return nil, ErrInvalidCount
	}
	if k > n {
		k = n
	}

	pool := make([]int, n)
	for i := range pool {
		pool[i] = i
	}

	picked := make([]int, 0, k)
	for len(picked) < k {
		idx, err := SecureRandomInt(len(pool))
		if err != nil {
			return nil, err
		}
		picked = append(picked, pool[idx])
		pool = append(pool[:idx], pool[idx+1:]...)
	}
	return picked, nil
}

// GeneratePickupCode returns an 8-character code from the restricted
// alphabet, one secure draw per character.
func GeneratePickupCode() (string, error) {
	code := make([]byte, PickupCodeLength)
	for i := range code {
		idx, err := SecureRandomInt(len(pickupCodeAlphabet))
		if err != nil {
			return "", fmt.Errorf("generate pickup code: %w", err)
		}
		code[i] = pickupCodeAlphabet[idx]
	}
	return string(code), nil
}
