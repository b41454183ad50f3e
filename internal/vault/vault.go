package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// formatTag is bound into the GCM authentication tag as associated data.
// Bumping it invalidates every previously issued blob, which is the
// intended way to version the blob format.
const formatTag = "nodeforge-vault-v1"

const (
	saltSize  = 16
	nonceSize = 12
	keySize   = 32

	argonTime    = 3
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
)

// DecryptionError reports a wrong master password, a corrupted blob, or
// a blob issued under a different format version. The causes are
// deliberately indistinguishable.
type DecryptionError struct {
	Reason string
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("vault decryption failed: %s", e.Reason)
}

// Vault encrypts and decrypts credential maps under a master password.
// The password is held in memory for the vault's lifetime; nothing else
// is retained between calls.
type Vault struct {
	master []byte
}

func New(masterPassword string) *Vault {
	return &Vault{master: []byte(masterPassword)}
}

// Encrypt serializes the secret map and seals it with AES-256-GCM under
// an Argon2id-derived key. Salt and nonce are freshly random on every
// call, so encrypting the same input twice never yields the same blob.
func (v *Vault) Encrypt(secrets map[string]string) (string, error) {
	plaintext, err := json.Marshal(secrets)
	if err != nil {
		return "", fmt.Errorf("failed to serialize secrets: %w", err)
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	gcm, err := v.aead(salt)
	if err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, []byte(formatTag))

	blob := make([]byte, 0, saltSize+nonceSize+len(ciphertext))
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = append(blob, ciphertext...)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt reverses Encrypt. Any tampering with the blob, a different
// master password, or a mismatched format tag yields a DecryptionError.
func (v *Vault) Decrypt(encoded string) (map[string]string, error) {
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, &DecryptionError{Reason: "invalid base64 encoding"}
	}

	if len(blob) < saltSize+nonceSize+1 {
		return nil, &DecryptionError{Reason: "blob too short"}
	}

	salt := blob[:saltSize]
	nonce := blob[saltSize : saltSize+nonceSize]
	ciphertext := blob[saltSize+nonceSize:]

	gcm, err := v.aead(salt)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, []byte(formatTag))
	if err != nil {
		return nil, &DecryptionError{Reason: "authentication failed"}
	}

	var secrets map[string]string
	if err := json.Unmarshal(plaintext, &secrets); err != nil {
		return nil, &DecryptionError{Reason: "invalid payload"}
	}

	return secrets, nil
}

func (v *Vault) aead(salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey(v.master, salt, argonTime, argonMemory, argonThreads, keySize)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return gcm, nil
}
