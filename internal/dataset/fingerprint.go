package dataset

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Source describes where a dataset came from. Hashes let an analyst prove
// which exact file a report was produced from.
type Source struct {
	Path      string    `json:"path" yaml:"path"`
	Format    string    `json:"format" yaml:"format"`
	Encoding  string    `json:"encoding,omitempty" yaml:"encoding,omitempty"`
	Delimiter string    `json:"delimiter,omitempty" yaml:"delimiter,omitempty"`
	Table     string    `json:"table,omitempty" yaml:"table,omitempty"`
	Size      int64     `json:"size_bytes" yaml:"size_bytes"`
	Modified  time.Time `json:"modified" yaml:"modified"`
	MD5       string    `json:"md5" yaml:"md5"`
	SHA1      string    `json:"sha1" yaml:"sha1"`
	SHA256    string    `json:"sha256" yaml:"sha256"`
}

// Fingerprint stats and hashes a file in a single pass.
func Fingerprint(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return Source{}, fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return Source{}, fmt.Errorf("stat: %w", err)
	}
	hm, h1, h256 := md5.New(), sha1.New(), sha256.New()
	if _, err := io.Copy(io.MultiWriter(hm, h1, h256), f); err != nil {
		return Source{}, fmt.Errorf("hash: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return Source{
		Path:     abs,
		Size:     info.Size(),
		Modified: info.ModTime().UTC(),
		MD5:      hex.EncodeToString(hm.Sum(nil)),
		SHA1:     hex.EncodeToString(h1.Sum(nil)),
		SHA256:   hex.EncodeToString(h256.Sum(nil)),
	}, nil
}
