// Package random generates temporary passwords and numeric usernames.
package random

import (
	"crypto/rand"
	"math/big"
)

const (
	digits   = "0123456789"
	alphanum = digits + "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

func pick(alphabet string, n int) string {
	out := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out)
}

// Seq returns a random alphanumeric string of length n.
func Seq(n int) string {
	return pick(alphanum, n)
}

// Digits returns a random numeric string of length n without a leading zero.
func Digits(n int) string {
	if n <= 0 {
		return ""
	}
	return pick(digits[1:], 1) + pick(digits, n-1)
}

// Num returns a random integer in [0, n).
func Num(n int) int {
	r, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return int(r.Int64())
}
