// Package codes generates the short room codes players type to join a
// game. Codes are uppercase alphanumeric with the visually confusable
// characters (0/O, 1/I/L) removed, and carry a one-letter mode prefix so
// a code pasted into the wrong mode screen is obvious at a glance.
package codes

import (
	"crypto/rand"
	"math/big"
)

const alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// codeLen is the total code length including the mode prefix.
const codeLen = 6

type Generator struct {
	prefix byte
}

func NewGenerator(prefix byte) *Generator {
	return &Generator{prefix: prefix}
}

// Next produces a fresh code. Uniqueness is the caller's problem: the
// registry checks the code against live rooms and retries on collision.
func (g *Generator) Next() (string, error) {
	code := make([]byte, codeLen)
	code[0] = g.prefix
	for i := 1; i < codeLen; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", err
		}
		code[i] = alphabet[n.Int64()]
	}
	return string(code), nil
}
