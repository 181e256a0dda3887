// Package digest provides the named checksum algorithms used to fingerprint
// data disks and whole files.
package digest

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"slices"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
	"xorkevin.dev/hunter2/h2streamhash"
	"xorkevin.dev/hunter2/h2streamhash/blake2bstream"
	"xorkevin.dev/hunter2/h2streamhash/sha256stream"
	"xorkevin.dev/kerrors"
)

var (
	// ErrUnknownAlgorithm is returned when a checksum algorithm is not supported
	ErrUnknownAlgorithm errUnknownAlgorithm
	// ErrMalformed is returned when a checksum value is malformed
	ErrMalformed errMalformed
)

type (
	errUnknownAlgorithm struct{}
	errMalformed        struct{}
)

func (e errUnknownAlgorithm) Error() string {
	return "Unknown checksum algorithm"
}

func (e errMalformed) Error() string {
	return "Malformed checksum"
}

type (
	// Algorithm is a named hash function producing hex digests
	Algorithm struct {
		name    string
		size    int
		newHash func() hash.Hash
	}
)

func newBlake2b256() hash.Hash {
	// only fails for keys longer than 64 bytes
	h, _ := blake2b.New256(nil)
	return h
}

func newBlake2b512() hash.Hash {
	h, _ := blake2b.New512(nil)
	return h
}

var algorithms = []Algorithm{
	{name: "MD5", size: md5.Size, newHash: md5.New},
	{name: "SHA1", size: sha1.Size, newHash: sha1.New},
	{name: "SHA224", size: sha256.Size224, newHash: sha256.New224},
	{name: "SHA256", size: sha256.Size, newHash: sha256.New},
	{name: "SHA384", size: sha512.Size384, newHash: sha512.New384},
	{name: "SHA512", size: sha512.Size, newHash: sha512.New},
	{name: "BLAKE2B-256", size: blake2b.Size256, newHash: newBlake2b256},
	{name: "BLAKE2B-512", size: blake2b.Size, newHash: newBlake2b512},
	{name: "SHA3-256", size: 32, newHash: sha3.New256},
	{name: "SHA3-512", size: 64, newHash: sha3.New512},
}

var aliases = map[string]string{
	// hashlib names blake2b with its full digest size
	"BLAKE2B": "BLAKE2B-512",
}

func normalize(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || r == '_' {
			return -1
		}
		return r
	}, strings.ToUpper(strings.TrimSpace(name)))
}

// Lookup returns the algorithm for a case insensitive name such as sha1,
// SHA-256, or sha3_512
func Lookup(name string) (*Algorithm, error) {
	k := strings.ToUpper(strings.TrimSpace(name))
	if v, ok := aliases[k]; ok {
		k = v
	}
	k = normalize(k)
	for n, i := range algorithms {
		if normalize(i.name) == k {
			return &algorithms[n], nil
		}
	}
	return nil, kerrors.WithKind(nil, ErrUnknownAlgorithm, "Unknown checksum algorithm "+name)
}

// Names returns the canonical names of all supported algorithms
func Names() []string {
	names := make([]string, 0, len(algorithms))
	for _, i := range algorithms {
		names = append(names, i.name)
	}
	slices.Sort(names)
	return names
}

// Name returns the canonical algorithm name
func (a *Algorithm) Name() string {
	return a.name
}

// Size returns the digest size in bytes
func (a *Algorithm) Size() int {
	return a.size
}

// New returns a new hash
func (a *Algorithm) New() hash.Hash {
	return a.newHash()
}

// Sum returns the lowercase hex digest of data
func (a *Algorithm) Sum(data []byte) string {
	h := a.newHash()
	// writes to a [hash.Hash] never fail
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Decode parses a hex digest of this algorithm
func (a *Algorithm) Decode(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, kerrors.WithKind(err, ErrMalformed, "Checksum is not hex")
	}
	if len(b) != a.size {
		return nil, kerrors.WithKind(nil, ErrMalformed, "Checksum has wrong length for "+a.name)
	}
	return b, nil
}

type (
	// Matcher reports whether data reproduces a known-good digest
	//
	// A Matcher is not safe for concurrent use.
	Matcher interface {
		Match(data []byte) (bool, error)
	}

	// MatcherFactory creates independent matchers for the same digest
	MatcherFactory func() Matcher

	hexMatcher struct {
		h    hash.Hash
		want []byte
		sum  []byte
	}

	streamMatcher struct {
		verifier *h2streamhash.Verifier
		want     string
	}
)

// IsStreamSum reports whether a checksum is a self describing stream hash
func IsStreamSum(checksum string) bool {
	return strings.HasPrefix(strings.TrimSpace(checksum), "$")
}

// NewMatcherFactory returns a factory of matchers for a known-good whole-file
// checksum
//
// Checksums beginning with $ are self describing stream hashes and ignore
// algorithm. Otherwise checksum is the hex digest of the named algorithm.
func NewMatcherFactory(algorithm, checksum string) (MatcherFactory, error) {
	checksum = strings.TrimSpace(checksum)
	if IsStreamSum(checksum) {
		verifier := newStreamVerifier()
		if _, err := verifier.Verify(checksum); err != nil {
			return nil, kerrors.WithKind(err, ErrMalformed, "Invalid stream checksum")
		}
		return func() Matcher {
			return &streamMatcher{
				verifier: verifier,
				want:     checksum,
			}
		}, nil
	}
	alg, err := Lookup(algorithm)
	if err != nil {
		return nil, err
	}
	want, err := alg.Decode(checksum)
	if err != nil {
		return nil, err
	}
	return func() Matcher {
		return &hexMatcher{
			h:    alg.New(),
			want: want,
			sum:  make([]byte, 0, alg.Size()),
		}
	}, nil
}

func (m *hexMatcher) Match(data []byte) (bool, error) {
	m.h.Reset()
	m.h.Write(data)
	m.sum = m.h.Sum(m.sum[:0])
	return bytes.Equal(m.sum, m.want), nil
}

func (m *streamMatcher) Match(data []byte) (bool, error) {
	h, err := m.verifier.Verify(m.want)
	if err != nil {
		return false, kerrors.WithMsg(err, "Failed creating hash")
	}
	if _, err := h.Write(data); err != nil {
		return false, kerrors.WithMsg(err, "Failed writing to hash")
	}
	if err := h.Close(); err != nil {
		return false, kerrors.WithMsg(err, "Failed closing stream hash")
	}
	ok, err := h.Verify(m.want)
	if err != nil {
		return false, kerrors.WithMsg(err, "Failed verifying checksum")
	}
	return ok, nil
}

func newStreamHashers() (h2streamhash.Hasher, map[string]h2streamhash.Hasher) {
	b2sum := blake2bstream.NewHasher(blake2bstream.Config{})
	sha256sum := sha256stream.NewHasher(sha256stream.Config{})
	return b2sum, map[string]h2streamhash.Hasher{
		b2sum.ID():     b2sum,
		sha256sum.ID(): sha256sum,
	}
}

func newStreamVerifier() *h2streamhash.Verifier {
	_, hashers := newStreamHashers()
	verifier := h2streamhash.NewVerifier()
	for _, v := range hashers {
		verifier.Register(v)
	}
	return verifier
}

// StreamIDs returns the ids of the supported stream hashes
func StreamIDs() []string {
	_, hashers := newStreamHashers()
	ids := make([]string, 0, len(hashers))
	for k := range hashers {
		ids = append(ids, k)
	}
	slices.Sort(ids)
	return ids
}

// StreamSum returns the self describing stream hash of data
//
// An empty id selects the default blake2b stream hash.
func StreamSum(data []byte, id string) (string, error) {
	hasher, hashers := newStreamHashers()
	if id != "" {
		var ok bool
		hasher, ok = hashers[id]
		if !ok {
			return "", kerrors.WithKind(nil, ErrUnknownAlgorithm, "Unknown stream hash "+id)
		}
	}
	h, err := hasher.Hash()
	if err != nil {
		return "", kerrors.WithMsg(err, "Failed creating hash")
	}
	if _, err := h.Write(data); err != nil {
		return "", kerrors.WithMsg(err, "Failed writing to hash")
	}
	if err := h.Close(); err != nil {
		return "", kerrors.WithMsg(err, "Failed closing stream hash")
	}
	return h.Sum(), nil
}
