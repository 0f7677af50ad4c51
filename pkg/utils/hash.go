package utils

import (
	"crypto/md5"
	"fmt"
)

// HashString returns the hex md5 of input. Used for stable item ids derived
// from source URLs; not a security boundary.
func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}
