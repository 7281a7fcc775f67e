package fixity

import (
	"crypto/md5"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/esperoj/esperoj/constants"
)

// NewHash returns a hash for the given algorithm, or an error if the
// algorithm is not one we support.
func NewHash(algorithm string) (hash.Hash, error) {
	switch algorithm {
	case constants.AlgMd5:
		return md5.New(), nil
	case constants.AlgSha256:
		return sha256.New(), nil
	case constants.AlgSha512:
		return sha512.New(), nil
	}
	return nil, fmt.Errorf("unsupported digest algorithm: %s", algorithm)
}

// Digest streams reader through the given algorithm and returns the
// hex-encoded digest and the number of bytes read. The stream is
// consumed exactly once and is never buffered in full, so this is safe
// for very large files.
func Digest(algorithm string, reader io.Reader) (string, int64, error) {
	digests, byteCount, err := MultiDigest(reader, algorithm)
	if err != nil {
		return "", byteCount, err
	}
	return digests[algorithm], byteCount, nil
}

// MultiDigest streams reader through all of the given algorithms at
// once and returns hex-encoded digests keyed by algorithm name. One
// pass over the bytes, no matter how many digests we want.
func MultiDigest(reader io.Reader, algorithms ...string) (map[string]string, int64, error) {
	hashes := make([]hash.Hash, len(algorithms))
	writers := make([]io.Writer, len(algorithms))
	for i, algorithm := range algorithms {
		h, err := NewHash(algorithm)
		if err != nil {
			return nil, 0, err
		}
		hashes[i] = h
		writers[i] = h
	}
	byteCount, err := io.Copy(io.MultiWriter(writers...), reader)
	if err != nil {
		return nil, byteCount, err
	}
	digests := make(map[string]string, len(algorithms))
	for i, algorithm := range algorithms {
		digests[algorithm] = hex.EncodeToString(hashes[i].Sum(nil))
	}
	return digests, byteCount, nil
}

// DigestsMatch compares two hex digests in constant time. Case does
// not matter; providers disagree about hex capitalization.
func DigestsMatch(expected, actual string) bool {
	e := strings.ToLower(expected)
	a := strings.ToLower(actual)
	return len(e) > 0 && subtle.ConstantTimeCompare([]byte(e), []byte(a)) == 1
}
