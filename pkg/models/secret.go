package models

// SecretRecord is one stored encrypted secret: an opaque alias identifying the
// row, its type tag, and the ciphertext blob as hex(nonce || ciphertext+tag).
type SecretRecord struct {
	Alias      string
	Type       string
	Ciphertext string
}
