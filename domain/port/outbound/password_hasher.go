package outbound

// PasswordHasher hashes and verifies API user passwords
type PasswordHasher interface {
	// Hash returns an encoded hash embedding its salt
	Hash(password string) (string, error)

	// Verify reports whether password matches an encoded hash
	Verify(password, encoded string) bool
}
