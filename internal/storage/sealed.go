package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/and161185/mediadesk/internal/crypto/sealer"
)

// saltKey holds the Argon2id salt in the wrapped store; it is never sealed itself.
const saltKey = "_sealer_salt"

// Sealed encrypts values before handing them to the wrapped store.
type Sealed struct {
	inner Storage
	key   []byte
}

// NewSealed derives the sealing key from passphrase, creating the salt on first use.
func NewSealed(ctx context.Context, inner Storage, passphrase string) (*Sealed, error) {
	if passphrase == "" {
		return nil, errors.New("sealed storage: empty passphrase")
	}
	enc, ok, err := inner.Get(ctx, saltKey)
	if err != nil {
		return nil, err
	}
	var salt []byte
	if ok {
		salt, err = base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return nil, fmt.Errorf("decode salt: %w", err)
		}
	} else {
		salt, err = sealer.Rand(sealer.SaltLen)
		if err != nil {
			return nil, err
		}
		if err := inner.Set(ctx, saltKey, base64.StdEncoding.EncodeToString(salt)); err != nil {
			return nil, err
		}
	}
	return &Sealed{inner: inner, key: sealer.DeriveKey([]byte(passphrase), salt)}, nil
}

func (s *Sealed) Get(ctx context.Context, key string) (string, bool, error) {
	enc, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}
	blob, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return "", false, fmt.Errorf("decode %s: %w", key, err)
	}
	pt, err := sealer.Open(s.key, []byte(key), blob)
	if err != nil {
		return "", false, fmt.Errorf("open %s: %w", key, err)
	}
	return string(pt), true, nil
}

func (s *Sealed) Set(ctx context.Context, key, value string) error {
	blob, err := sealer.Seal(s.key, []byte(key), []byte(value))
	if err != nil {
		return err
	}
	return s.inner.Set(ctx, key, base64.StdEncoding.EncodeToString(blob))
}

func (s *Sealed) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}
