//go:build race

package auth

import "golang.org/x/crypto/bcrypt"

// Race builds run hashing far slower, drop to the library default.
func passwordHashCost() int {
	return bcrypt.DefaultCost
}
