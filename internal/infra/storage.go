package infra

// storage.go: filesystem-backed object storage for rendered PDFs.
// Objects live under {basePath}/{bucket}/{key}. URLs are either public
// (STORAGE_PUBLIC_BASE_URL) or signed with an expiring HS256 token and served
// back by the /files endpoint.

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrObjectNotFound = errors.New("storage: object not found")
	ErrInvalidKey     = errors.New("storage: invalid object key")
	ErrInvalidSig     = errors.New("storage: invalid or expired signature")
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
	ModTime     time.Time
}

// ObjectStorage is the subset of a blob store the PDF pipeline needs.
type ObjectStorage interface {
	Bucket() string
	Put(ctx context.Context, key string, data []byte, contentType string) (ObjectInfo, error)
	Get(ctx context.Context, key string) ([]byte, ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	// URL returns a link to key. Signed links carry their expiry.
	URL(key string, ttl time.Duration) (string, *time.Time, error)
	// Verify checks a signed link token for key.
	Verify(key, token string) error
}

// LocalStorage keeps objects on the local filesystem.
type LocalStorage struct {
	root          string
	bucket        string
	publicBaseURL string
	fileBaseURL   string
	secret        []byte
}

// NewLocalStorage creates the bucket directory if needed. fileBaseURL is the
// externally reachable origin of this service, used to build signed links.
func NewLocalStorage(basePath, bucket, publicBaseURL, fileBaseURL, secret string) (*LocalStorage, error) {
	root := filepath.Join(basePath, bucket)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create bucket dir: %w", err)
	}
	return &LocalStorage{
		root:          root,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		fileBaseURL:   strings.TrimRight(fileBaseURL, "/"),
		secret:        []byte(secret),
	}, nil
}

func (s *LocalStorage) Bucket() string { return s.bucket }

// resolve maps a slash-separated key to a path inside the bucket, refusing
// anything that would escape it.
func (s *LocalStorage) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)
	if key == "" || strings.HasSuffix(key, "/") || clean != "/"+key {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.root, filepath.FromSlash(clean[1:])), nil
}

func (s *LocalStorage) Put(_ context.Context, key string, data []byte, contentType string) (ObjectInfo, error) {
	p, err := s.resolve(key)
	if err != nil {
		return ObjectInfo{}, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return ObjectInfo{}, fmt.Errorf("storage: mkdir: %w", err)
	}

	// write-then-rename so readers never see a partial file; same key overwrites
	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("storage: temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return ObjectInfo{}, fmt.Errorf("storage: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return ObjectInfo{}, fmt.Errorf("storage: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return ObjectInfo{}, fmt.Errorf("storage: rename: %w", err)
	}

	return ObjectInfo{Key: key, Size: int64(len(data)), ContentType: contentType, ModTime: time.Now()}, nil
}

func (s *LocalStorage) Get(_ context.Context, key string) ([]byte, ObjectInfo, error) {
	p, err := s.resolve(key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ObjectInfo{}, ErrObjectNotFound
	}
	if err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("storage: read: %w", err)
	}
	st, err := os.Stat(p)
	if err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("storage: stat: %w", err)
	}
	return data, ObjectInfo{Key: key, Size: st.Size(), ContentType: contentTypeFor(key), ModTime: st.ModTime()}, nil
}

func (s *LocalStorage) Delete(_ context.Context, key string) error {
	p, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("storage: delete: %w", err)
	}
	return nil
}

// List walks the bucket and returns objects whose key starts with prefix,
// sorted by key.
func (s *LocalStorage) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, ObjectInfo{Key: key, Size: info.Size(), ContentType: contentTypeFor(key), ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// signedClaims bind a token to one object key.
type signedClaims struct {
	Key string `json:"key"`
	jwt.RegisteredClaims
}

func (s *LocalStorage) URL(key string, ttl time.Duration) (string, *time.Time, error) {
	if _, err := s.resolve(key); err != nil {
		return "", nil, err
	}
	escaped := escapeKey(key)
	if s.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s/%s", s.publicBaseURL, url.PathEscape(s.bucket), escaped), nil, nil
	}

	exp := time.Now().Add(ttl)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, signedClaims{
		Key: key,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("storage: sign url: %w", err)
	}
	return fmt.Sprintf("%s/files/%s?token=%s", s.fileBaseURL, escaped, url.QueryEscape(token)), &exp, nil
}

func (s *LocalStorage) Verify(key, token string) error {
	claims := &signedClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid || claims.Key != key {
		return ErrInvalidSig
	}
	return nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func contentTypeFor(key string) string {
	if strings.HasSuffix(strings.ToLower(key), ".pdf") {
		return "application/pdf"
	}
	return "application/octet-stream"
}
