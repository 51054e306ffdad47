// Package idgen generates the opaque, DNS-safe agent ids used as container
// names and registry keys.
package idgen

import (
	"crypto/rand"
	"fmt"
)

const (
	alphabet          = "abcdefghijklmnopqrstuvwxyz0123456789"
	defaultHashLength = 5
)

// AgentID returns an id of the form "{name}-{suffix}" where suffix is a
// fixed-length string drawn from a small lowercase-alphanumeric alphabet.
// The suffix is generated from a cryptographically unpredictable source
// rather than math/rand: agent ids are exposed as container and DNS names,
// so they must not be guessably enumerable.
func AgentID(name string) (string, error) {
	suffix, err := randomSuffix(defaultHashLength)
	if err != nil {
		return "", fmt.Errorf("generate agent id: %w", err)
	}
	return fmt.Sprintf("%s-%s", name, suffix), nil
}

func randomSuffix(length int) (string, error) {
	// Bytes at or above maxUnbiased are rejected so that every alphabet
	// character is equally likely.
	const maxUnbiased = 256 - 256%len(alphabet)
	buf := make([]byte, 1)
	out := make([]byte, 0, length)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		if int(buf[0]) >= maxUnbiased {
			continue
		}
		out = append(out, alphabet[int(buf[0])%len(alphabet)])
	}
	return string(out), nil
}
