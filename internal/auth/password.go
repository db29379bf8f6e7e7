package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// HashParams are the argon2id cost parameters.
type HashParams struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultHashParams follow the OWASP argon2id baseline.
var DefaultHashParams = HashParams{
	Memory:      19456,
	Iterations:  2,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

var errMalformedHash = errors.New("auth: malformed password hash")

// Hasher hashes and verifies passwords with argon2id. Each call holds one
// slot of a weighted semaphore so bursts of sign-ins cannot exhaust memory.
type Hasher struct {
	params HashParams
	slots  *semaphore.Weighted

	dummyOnce sync.Once
	dummy     string
	dummyErr  error
}

// HasherOption configures a Hasher.
type HasherOption func(*Hasher)

// WithHashParams overrides the argon2id parameters.
func WithHashParams(p HashParams) HasherOption {
	return func(h *Hasher) {
		if p.Memory > 0 && p.Iterations > 0 && p.Parallelism > 0 && p.SaltLength > 0 && p.KeyLength > 0 {
			h.params = p
		}
	}
}

// NewHasher builds a Hasher allowing at most concurrency simultaneous
// hash computations.
func NewHasher(concurrency int, opts ...HasherOption) *Hasher {
	if concurrency <= 0 {
		concurrency = 1
	}
	h := &Hasher{
		params: DefaultHashParams,
		slots:  semaphore.NewWeighted(int64(concurrency)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Hash returns the PHC encoded argon2id digest of password.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	if password == "" {
		return "", errors.New("auth: password is empty")
	}
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("auth: read salt: %w", err)
	}
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)
	h.slots.Release(1)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.params.Memory, h.params.Iterations, h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches the stored digest. A malformed
// digest yields false without an error; only context cancellation errors.
func (h *Hasher) Verify(ctx context.Context, digest, password string) (bool, error) {
	if strings.HasPrefix(digest, "$2") {
		return h.verifyBcrypt(ctx, digest, password)
	}
	params, salt, want, err := decodeArgon2id(digest)
	if err != nil {
		return false, nil
	}
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return false, err
	}
	got := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, uint32(len(want)))
	h.slots.Release(1)
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// VerifyMissing spends the same work as a real verification and always
// reports a mismatch. Callers use it when the account does not exist.
func (h *Hasher) VerifyMissing(ctx context.Context, password string) error {
	h.dummyOnce.Do(func() {
		h.dummy, h.dummyErr = h.Hash(context.Background(), "dummy-password-for-timing")
	})
	if h.dummyErr != nil {
		return h.dummyErr
	}
	_, err := h.Verify(ctx, h.dummy, password)
	return err
}

func (h *Hasher) verifyBcrypt(ctx context.Context, digest, password string) (bool, error) {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.slots.Release(1)
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password))
	return err == nil, nil
}

func decodeArgon2id(digest string) (HashParams, []byte, []byte, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return HashParams{}, nil, nil, errMalformedHash
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return HashParams{}, nil, nil, errMalformedHash
	}
	var p HashParams
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Iterations, &p.Parallelism); err != nil {
		return HashParams{}, nil, nil, errMalformedHash
	}
	if p.Memory == 0 || p.Iterations == 0 || p.Parallelism == 0 {
		return HashParams{}, nil, nil, errMalformedHash
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return HashParams{}, nil, nil, errMalformedHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return HashParams{}, nil, nil, errMalformedHash
	}
	return p, salt, key, nil
}
