package secret

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// header prefixes every key-encrypted SecureString export.
const header = "76492d1116743f0423413b16050a5345"

const formatVersion = "2"

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// Decrypt recovers the plaintext from a SecureString export.
func Decrypt(blob string, key []byte) (string, error) {
	blob = strings.TrimSpace(blob)
	if !strings.HasPrefix(blob, header) {
		return "", fmt.Errorf("%w: secret blob has no SecureString header", ErrConfig)
	}

	envelope, err := base64.StdEncoding.DecodeString(blob[len(header):])
	if err != nil {
		return "", fmt.Errorf("%w: secret blob envelope: %w", ErrConfig, err)
	}
	text, err := utf16le.NewDecoder().Bytes(envelope)
	if err != nil {
		return "", fmt.Errorf("%w: secret blob envelope: %w", ErrConfig, err)
	}

	parts := strings.Split(string(text), "|")
	if len(parts) != 3 || parts[0] != formatVersion {
		return "", fmt.Errorf("%w: unsupported secret blob layout", ErrConfig)
	}

	iv, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil || len(iv) != aes.BlockSize {
		return "", fmt.Errorf("%w: secret blob IV is malformed", ErrConfig)
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: secret blob ciphertext is malformed", ErrConfig)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrConfig, err)
	}
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)

	plain, err = unpad(plain)
	if err != nil || len(plain)%2 != 0 {
		return "", fmt.Errorf("%w: cannot decrypt secret blob (wrong key or corrupted blob)", ErrConfig)
	}

	secret, err := utf16le.NewDecoder().Bytes(plain)
	if err != nil {
		return "", fmt.Errorf("%w: decrypted secret is not UTF-16: %w", ErrConfig, err)
	}
	return string(secret), nil
}

// Seal produces a SecureString export of plaintext under key, readable by
// Decrypt and by PowerShell's ConvertTo-SecureString -Key.
func Seal(plaintext string, key []byte) (string, error) {
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}
	return sealWithIV(plaintext, key, iv)
}

func sealWithIV(plaintext string, key, iv []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrConfig, err)
	}

	encoded, err := utf16le.NewEncoder().Bytes([]byte(plaintext))
	if err != nil {
		return "", err
	}
	padded := pad(encoded)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	text := strings.Join([]string{
		formatVersion,
		base64.StdEncoding.EncodeToString(iv),
		hex.EncodeToString(ciphertext),
	}, "|")
	envelope, err := utf16le.NewEncoder().String(text)
	if err != nil {
		return "", err
	}
	return header + base64.StdEncoding.EncodeToString([]byte(envelope)), nil
}

func pad(data []byte) []byte {
	n := aes.BlockSize - len(data)%aes.BlockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty block")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil, fmt.Errorf("bad padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("bad padding")
		}
	}
	return data[:len(data)-n], nil
}
