package session

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"github.com/goliatone/go-errors"
	"golang.org/x/crypto/pbkdf2"
)

// DefaultPassphrase is the key the browser client ships with. Anything
// encrypted with it is only obfuscated.
const DefaultPassphrase = "HejH2Hemmelighed"

// Cipher encrypts the blobs a Store persists.
type Cipher interface {
	Encrypt(plaintext []byte) (string, error)
	Decrypt(blob string) ([]byte, error)
}

var opensslMagic = []byte("Salted__")

// PassphraseCipher produces the OpenSSL "Salted__" AES-256-CBC format used by
// CryptoJS.AES with a string key, so blobs are interchangeable with the
// browser client.
type PassphraseCipher struct {
	passphrase []byte
	rand       io.Reader
}

var _ Cipher = (*PassphraseCipher)(nil)

// NewPassphraseCipher returns a cipher keyed by passphrase. An empty
// passphrase falls back to DefaultPassphrase.
func NewPassphraseCipher(passphrase string) *PassphraseCipher {
	if passphrase == "" {
		passphrase = DefaultPassphrase
	}
	return &PassphraseCipher{passphrase: []byte(passphrase), rand: rand.Reader}
}

// UsesDefaultKey reports whether the cipher runs on the shipped passphrase.
func (c *PassphraseCipher) UsesDefaultKey() bool {
	return string(c.passphrase) == DefaultPassphrase
}

func (c *PassphraseCipher) Encrypt(plaintext []byte) (string, error) {
	salt := make([]byte, 8)
	if _, err := io.ReadFull(c.rand, salt); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "session: read salt")
	}

	key, iv := evpBytesToKey(c.passphrase, salt, 32, aes.BlockSize)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "session: create cipher")
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)

	blob := make([]byte, 0, len(opensslMagic)+len(salt)+len(out))
	blob = append(blob, opensslMagic...)
	blob = append(blob, salt...)
	blob = append(blob, out...)
	return base64.StdEncoding.EncodeToString(blob), nil
}

func (c *PassphraseCipher) Decrypt(blob string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "session: decode blob")
	}

	if len(raw) < 16 || !bytes.Equal(raw[:8], opensslMagic) {
		return nil, errors.New("session: blob is not salted", errors.CategoryBadInput)
	}

	salt, data := raw[8:16], raw[16:]
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, errors.New("session: ciphertext is not a multiple of the block size", errors.CategoryBadInput)
	}

	key, iv := evpBytesToKey(c.passphrase, salt, 32, aes.BlockSize)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "session: create cipher")
	}

	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)

	return pkcs7Unpad(out, aes.BlockSize)
}

// evpBytesToKey is OpenSSL's EVP_BytesToKey with MD5 and a single round.
func evpBytesToKey(passphrase, salt []byte, keyLen, ivLen int) ([]byte, []byte) {
	var (
		derived []byte
		prev    []byte
	)
	for len(derived) < keyLen+ivLen {
		h := md5.New()
		h.Write(prev)
		h.Write(passphrase)
		h.Write(salt)
		prev = h.Sum(nil)
		derived = append(derived, prev...)
	}
	return derived[:keyLen], derived[keyLen : keyLen+ivLen]
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(append([]byte(nil), data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("session: invalid padded data", errors.CategoryBadInput)
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, errors.New("session: invalid PKCS7 padding", errors.CategoryBadInput)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("session: invalid PKCS7 padding", errors.CategoryBadInput)
		}
	}
	return data[:len(data)-n], nil
}

// GCMIterations is the PBKDF2 round count used by GCMCipher.
var GCMIterations = 100_000

const (
	gcmSaltSize = 16
	gcmKeySize  = 32
)

// GCMCipher is AES-256-GCM with a PBKDF2-SHA256 key derived per blob from a
// random salt. Blobs are base64(salt | nonce | ciphertext).
type GCMCipher struct {
	passphrase []byte
	rand       io.Reader
}

var _ Cipher = (*GCMCipher)(nil)

// NewGCMCipher returns an authenticated cipher keyed by passphrase.
func NewGCMCipher(passphrase string) *GCMCipher {
	if passphrase == "" {
		passphrase = DefaultPassphrase
	}
	return &GCMCipher{passphrase: []byte(passphrase), rand: rand.Reader}
}

// UsesDefaultKey reports whether the cipher runs on the shipped passphrase.
func (c *GCMCipher) UsesDefaultKey() bool {
	return string(c.passphrase) == DefaultPassphrase
}

func (c *GCMCipher) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(c.passphrase, salt, GCMIterations, gcmKeySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "session: create cipher")
	}
	return cipher.NewGCM(block)
}

func (c *GCMCipher) Encrypt(plaintext []byte) (string, error) {
	salt := make([]byte, gcmSaltSize)
	if _, err := io.ReadFull(c.rand, salt); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "session: read salt")
	}

	gcm, err := c.aead(salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "session: read nonce")
	}

	out := append(salt, nonce...)
	out = gcm.Seal(out, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (c *GCMCipher) Decrypt(blob string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "session: decode blob")
	}
	if len(raw) < gcmSaltSize {
		return nil, errors.New("session: blob too short", errors.CategoryBadInput)
	}

	gcm, err := c.aead(raw[:gcmSaltSize])
	if err != nil {
		return nil, err
	}

	rest := raw[gcmSaltSize:]
	if len(rest) < gcm.NonceSize()+gcm.Overhead() {
		return nil, errors.New("session: blob too short", errors.CategoryBadInput)
	}

	nonce, data := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, data, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "session: open blob")
	}
	return plain, nil
}

type defaultKeyReporter interface {
	UsesDefaultKey() bool
}
