package storage

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// ErrSealed is returned when a stored value cannot be opened with the key.
var ErrSealed = errors.New("storage: value cannot be decrypted")

// SealedStore encrypts values with NaCl secretbox before handing them to the
// wrapped store. Keys are stored in the clear.
type SealedStore struct {
	inner Store
	key   [32]byte
	rand  io.Reader
}

func NewSealedStore(inner Store, key *[32]byte) (*SealedStore, error) {
	if inner == nil {
		return nil, fmt.Errorf("inner store is required")
	}
	if key == nil {
		return nil, fmt.Errorf("encryption key is required")
	}
	return &SealedStore{inner: inner, key: *key, rand: rand.Reader}, nil
}

func (s *SealedStore) Get(ctx context.Context, key string) (string, error) {
	raw, err := s.inner.Get(ctx, key)
	if err != nil {
		return "", err
	}
	sealed, err := base64.RawStdEncoding.DecodeString(raw)
	if err != nil || len(sealed) < nonceSize+secretbox.Overhead {
		return "", fmt.Errorf("%w: %q", ErrSealed, key)
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	opened, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrSealed, key)
	}
	return string(opened), nil
}

func (s *SealedStore) Set(ctx context.Context, key, value string) error {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(s.rand, nonce[:]); err != nil {
		return fmt.Errorf("generating nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(value), &nonce, &s.key)
	return s.inner.Set(ctx, key, base64.RawStdEncoding.EncodeToString(sealed))
}

func (s *SealedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}
