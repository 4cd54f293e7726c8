// Package secret reconstructs the inventory API credential from a split key
// and an encrypted blob kept on the managed host.
//
// The blob is a PowerShell "ConvertFrom-SecureString -Key" export: a fixed
// header followed by base64 of the UTF-16LE text "2|<base64 IV>|<hex ciphertext>",
// where the ciphertext is AES-CBC (PKCS#7) over the UTF-16LE secret.
package secret

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"swisctl/pkg/models"
)

// KeySize is the number of key fragments (bytes) the blob cipher expects.
const KeySize = 16

// DefaultDelimiter separates key fragments when none is configured.
const DefaultDelimiter = ","

// ErrConfig marks bad key material or an unusable secret blob.
var ErrConfig = errors.New("secret configuration error")

// ParseKey splits text on delimiter and assembles the fragments into a key.
// Every fragment must be a decimal 0-255 and there must be exactly KeySize of them.
func ParseKey(text, delimiter string) ([]byte, error) {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: key is empty", ErrConfig)
	}

	fragments := strings.Split(text, delimiter)
	if len(fragments) != KeySize {
		return nil, fmt.Errorf("%w: key has %d fragments, want %d", ErrConfig, len(fragments), KeySize)
	}

	key := make([]byte, KeySize)
	for i, fragment := range fragments {
		value, err := strconv.ParseUint(strings.TrimSpace(fragment), 10, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: key fragment %d (%q) is not a byte value", ErrConfig, i, fragment)
		}
		key[i] = byte(value)
	}
	return key, nil
}

// Reconstruct parses the key, reads the blob at blobPath and decrypts it into
// a Credential for username. Nothing is written anywhere.
func Reconstruct(keyText, delimiter, blobPath, username string) (models.Credential, error) {
	key, err := ParseKey(keyText, delimiter)
	if err != nil {
		return models.Credential{}, err
	}

	blob, err := os.ReadFile(blobPath)
	if err != nil {
		return models.Credential{}, fmt.Errorf("%w: read secret blob: %w", ErrConfig, err)
	}

	password, err := Decrypt(string(blob), key)
	if err != nil {
		return models.Credential{}, err
	}

	return models.Credential{Username: username, Password: password}, nil
}
