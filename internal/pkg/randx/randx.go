/*
Package randx provides functions for generating cryptographically secure random numbers and unique identifiers.

It is primarily used to generate fixed-length Base62 encoded room identifiers,
standard UUID message identifiers, and fallback guest nicknames.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the total number of characters in the Base62 character set (62).
	Base62Len = int64(len(Base62Chars))

	// RoomIDLength is the fixed length required for a generated room identifier.
	RoomIDLength = 8
)

// base62String generates length random Base62 characters using crypto/rand.
func base62String(length int) (string, error) {
	result := make([]byte, length)

	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random base62 character: %v", err)
		}

		result[i] = Base62Chars[num.Int64()]
	}

	return string(result), nil
}

// RoomID generates a Base62 encoded room identifier using a cryptographically
// secure random number generator (crypto/rand).
// It returns a string of length RoomIDLength and any error encountered.
func RoomID() (string, error) {
	return base62String(RoomIDLength)
}

// IsValidRoomID checks if the given string is a valid room identifier.
// Validity criteria include: length equals RoomIDLength and all characters belong to the Base62Chars set.
func IsValidRoomID(id string) bool {
	if len(id) != RoomIDLength {
		return false
	}

	for _, char := range id {
		if !strings.ContainsRune(Base62Chars, char) {
			return false
		}
	}

	return true
}

// MessageID generates a standard UUID v4 string to serve as a unique identifier for a wire message.
func MessageID() string {
	return uuid.New().String()
}

// GuestNickname generates a random nickname with a "Guest_" prefix and 4 random Base62 characters,
// used when a player joins without supplying a nickname.
func GuestNickname() (string, error) {
	const nicknameRandomLength = 4

	suffix, err := base62String(nicknameRandomLength)
	if err != nil {
		return "", err
	}

	return "Guest_" + suffix, nil
}

// PickIndex returns a uniformly random index in [0, n) using crypto/rand.
// Used for fair one-off draws such as the first-game color assignment.
func PickIndex(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("PickIndex requires a positive bound, got %d", n)
	}

	num, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("failed to generate random index: %v", err)
	}

	return int(num.Int64()), nil
}
