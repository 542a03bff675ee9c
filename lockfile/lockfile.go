// Package lockfile tracks which source strings each output file was
// translated from.
//
// The state lives in aitranslate.lock next to the source file. For every
// output file it keeps the MD5 digest of each source value, so an
// incremental run only sends keys whose digest moved.
package lockfile

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/minios-linux/aitranslate/diff"
)

// LockFileName is the name of the lock file inside the project directory.
const LockFileName = "aitranslate.lock"

// Version is the newest format this package reads and the one it writes.
const Version = 1

// Snapshot maps a flattened source key to the digest of its value.
type Snapshot map[string]string

// Take digests every value of source.
func Take(source map[string]string) Snapshot {
	s := make(Snapshot, len(source))
	for key, value := range source {
		s[key] = Hash(value)
	}
	return s
}

func (s Snapshot) clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// LockFile is the decoded aitranslate.lock.
type LockFile struct {
	Version   int                 `yaml:"version"`
	Checksums map[string]Snapshot `yaml:"checksums"`

	mu   sync.Mutex
	path string
}

// Load opens the lock file in dir. A missing file yields an empty lock that
// Save will create.
func Load(dir string) (*LockFile, error) {
	lf := &LockFile{path: filepath.Join(dir, LockFileName)}

	data, err := os.ReadFile(lf.path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("reading %s: %w", lf.path, err)
	default:
		if err := yaml.Unmarshal(data, lf); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", lf.path, err)
		}
		if lf.Version > Version {
			return nil, fmt.Errorf("%s: lock file version %d is newer than %d", lf.path, lf.Version, Version)
		}
	}

	lf.Version = Version
	if lf.Checksums == nil {
		lf.Checksums = map[string]Snapshot{}
	}
	return lf, nil
}

// Save replaces the lock file on disk atomically.
func (lf *LockFile) Save() error {
	lf.mu.Lock()
	data, err := yaml.Marshal(lf)
	lf.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encoding lock file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(lf.path), LockFileName+".*")
	if err != nil {
		return fmt.Errorf("writing %s: %w", lf.path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", lf.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", lf.path, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), lf.path)
}

// Path is where Save writes.
func (lf *LockFile) Path() string { return lf.path }

// Hash is the hex MD5 digest of s.
func Hash(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// TargetKey names an output file inside the lock: relative to dir with
// forward slashes when the file lives under dir, otherwise the path as is.
func TargetKey(dir, outputPath string) string {
	if rel, err := filepath.Rel(dir, outputPath); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(outputPath)
}

// Has reports whether target was ever recorded.
func (lf *LockFile) Has(target string) bool {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	_, ok := lf.Checksums[target]
	return ok
}

// Diff classifies the keys of source against the snapshot of target. Every
// key counts as added when target has no snapshot.
func (lf *LockFile) Diff(target string, source map[string]string) diff.Result {
	lf.mu.Lock()
	previous := lf.Checksums[target].clone()
	lf.mu.Unlock()

	return diff.FromChecksums(previous, source, Hash)
}

// Record replaces the snapshot of target with the digests of source. Keys
// absent from source are dropped.
func (lf *LockFile) Record(target string, source map[string]string) {
	s := Take(source)
	lf.mu.Lock()
	lf.Checksums[target] = s
	lf.mu.Unlock()
}

// Update refreshes the digests of keys from source and drops deleted,
// leaving every other digest of target as it was.
func (lf *LockFile) Update(target string, source map[string]string, keys, deleted []string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	s := lf.Checksums[target]
	if s == nil {
		s = Snapshot{}
		lf.Checksums[target] = s
	}
	for _, key := range keys {
		if value, ok := source[key]; ok {
			s[key] = Hash(value)
		}
	}
	for _, key := range deleted {
		delete(s, key)
	}
}

// Targets lists the recorded output files in order.
func (lf *LockFile) Targets() []string {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	out := make([]string, 0, len(lf.Checksums))
	for target := range lf.Checksums {
		out = append(out, target)
	}
	sort.Strings(out)
	return out
}
