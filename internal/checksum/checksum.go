// Package checksum reads checksum manifests and verifies artifacts against
// them, in the manner of `sha1sum -c`.
//
// Two line formats are accepted:
//
//	<hex digest>  <path>          GNU coreutils style, algorithm inferred from digest length
//	SHA1 (<path>) = <hex digest>  BSD tag style, algorithm named explicitly
//
// Blank lines and lines starting with '#' are ignored.
package checksum

import (
	"bufio"
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Algorithm names a digest function.
type Algorithm string

const (
	MD5    Algorithm = "md5"
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256"
)

func (a Algorithm) new() (hash.Hash, bool) {
	switch a {
	case MD5:
		return md5.New(), true
	case SHA1:
		return sha1.New(), true
	case SHA256:
		return sha256.New(), true
	default:
		return nil, false
	}
}

func algorithmForLength(hexLen int) (Algorithm, bool) {
	switch hexLen {
	case 2 * md5.Size:
		return MD5, true
	case 2 * sha1.Size:
		return SHA1, true
	case 2 * sha256.Size:
		return SHA256, true
	default:
		return "", false
	}
}

// Entry is one expected digest.
type Entry struct {
	Algorithm Algorithm
	Digest    string // lower-case hex
	Path      string
}

// Load reads the manifest at path.
func Load(path string) ([]Entry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checksum manifest: %w", err)
	}
	entries, err := Parse(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

// Parse reads manifest lines from r. An empty manifest is an error: it would
// verify nothing.
func Parse(r io.Reader) ([]Entry, error) {
	var entries []Entry
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		e, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errors.New("no checksum entries")
	}
	return entries, nil
}

func parseLine(line string) (Entry, error) {
	// BSD tag style: ALGO (path) = digest
	if open := strings.Index(line, " ("); open > 0 {
		if end := strings.LastIndex(line, ") = "); end > open {
			algo := Algorithm(strings.ToLower(line[:open]))
			if _, ok := algo.new(); !ok {
				return Entry{}, fmt.Errorf("unsupported algorithm %q", line[:open])
			}
			e := Entry{Algorithm: algo, Path: line[open+2 : end], Digest: strings.ToLower(line[end+4:])}
			return e, e.checkDigest()
		}
	}

	// GNU style: digest, whitespace, optional '*' (binary mode), path
	fields := strings.SplitN(line, " ", 2)
	if len(fields) != 2 {
		return Entry{}, fmt.Errorf("malformed line %q", line)
	}
	path := strings.TrimLeft(fields[1], " ")
	path = strings.TrimPrefix(path, "*")
	if path == "" {
		return Entry{}, fmt.Errorf("missing path in %q", line)
	}
	digest := strings.ToLower(fields[0])
	algo, ok := algorithmForLength(len(digest))
	if !ok {
		return Entry{}, fmt.Errorf("cannot infer algorithm for %d-digit digest", len(digest))
	}
	e := Entry{Algorithm: algo, Digest: digest, Path: path}
	return e, e.checkDigest()
}

func (e Entry) checkDigest() error {
	raw, err := hex.DecodeString(e.Digest)
	if err != nil {
		return fmt.Errorf("digest for %s is not hex: %w", e.Path, err)
	}
	h, _ := e.Algorithm.new()
	if len(raw) != h.Size() {
		return fmt.Errorf("digest for %s has %d bytes, %s needs %d", e.Path, len(raw), e.Algorithm, h.Size())
	}
	return nil
}

// Result is the outcome of verifying one entry.
type Result struct {
	Entry  Entry
	Actual string
	OK     bool
	Err    error // set when the file could not be read
}

// ErrMismatch is the Kind of every *MismatchError.
var ErrMismatch = errors.New("checksum mismatch")

// MismatchError lists the entries that failed verification.
type MismatchError struct {
	Failed []Result
}

func (e *MismatchError) Error() string {
	if e == nil {
		return ""
	}
	paths := make([]string, len(e.Failed))
	for i, r := range e.Failed {
		paths[i] = r.Entry.Path
	}
	return fmt.Sprintf("%s: %s", ErrMismatch, strings.Join(paths, ", "))
}

func (e *MismatchError) Unwrap() error { return ErrMismatch }

// Verify hashes every entry's file, resolving relative paths against baseDir.
// It returns all results, and a *MismatchError when any entry failed.
func Verify(entries []Entry, baseDir string) ([]Result, error) {
	results := make([]Result, 0, len(entries))
	var failed []Result
	for _, e := range entries {
		r := Result{Entry: e}
		r.Actual, r.Err = digestFile(e.Algorithm, resolve(baseDir, e.Path))
		r.OK = r.Err == nil && r.Actual == e.Digest
		if !r.OK {
			failed = append(failed, r)
		}
		results = append(results, r)
	}
	if len(failed) > 0 {
		return results, &MismatchError{Failed: failed}
	}
	return results, nil
}

func digestFile(algo Algorithm, path string) (string, error) {
	h, ok := algo.new()
	if !ok {
		return "", fmt.Errorf("unsupported algorithm %q", algo)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) || base == "" {
		return p
	}
	return filepath.Join(base, p)
}

// Touch creates (or truncates) the zero-byte sentinel at path.
func Touch(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, nil, 0o644)
}
