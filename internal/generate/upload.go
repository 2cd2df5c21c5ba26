package generate

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// DefaultMaxUploadBytes caps an uploaded image.
const DefaultMaxUploadBytes int64 = 10 << 20

var (
	// ErrUploadTooLarge is returned when an upload exceeds its size cap.
	ErrUploadTooLarge = errors.New("upload exceeds size limit")
	// ErrUploadReleased is returned when a released upload is read.
	ErrUploadReleased = errors.New("upload already released")
)

// Upload is a scratch file holding one request's image.
//
// It is owned by exactly one request. Release removes the file exactly once;
// reads after Release fail.
type Upload struct {
	path      string
	size      int64
	mediaType string

	once       sync.Once
	released   atomic.Bool
	releaseErr error
}

// NewUpload copies r into a new scratch file under dir (os.TempDir when empty).
// An empty body is ErrNoInput; more than maxBytes is ErrUploadTooLarge.
// On error no file is left behind.
func NewUpload(dir string, r io.Reader, maxBytes int64, mediaType string) (*Upload, error) {
	if r == nil {
		return nil, ErrNoInput
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	path := filepath.Join(dir, "postly-"+uuid.NewString()+".upload")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600) // #nosec G304 -- path is generated
	if err != nil {
		return nil, fmt.Errorf("create upload: %w", err)
	}

	n, copyErr := io.Copy(f, io.LimitReader(r, maxBytes+1))
	closeErr := f.Close()

	fail := func(err error) (*Upload, error) {
		_ = os.Remove(path)
		return nil, err
	}
	switch {
	case copyErr != nil:
		return fail(fmt.Errorf("write upload: %w", copyErr))
	case closeErr != nil:
		return fail(fmt.Errorf("close upload: %w", closeErr))
	case n == 0:
		return fail(ErrNoInput)
	case n > maxBytes:
		return fail(ErrUploadTooLarge)
	}

	return &Upload{path: path, size: n, mediaType: mediaType}, nil
}

// Path returns the scratch file location.
func (u *Upload) Path() string { return u.path }

// Size returns the number of bytes stored.
func (u *Upload) Size() int64 { return u.size }

// MediaType is the client-declared content type, possibly empty.
func (u *Upload) MediaType() string { return u.mediaType }

// Released reports whether Release has run.
func (u *Upload) Released() bool { return u.released.Load() }

// Read returns the upload contents.
func (u *Upload) Read() ([]byte, error) {
	if u == nil {
		return nil, ErrNoInput
	}
	if u.released.Load() {
		return nil, ErrUploadReleased
	}
	data, err := os.ReadFile(u.path)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return data, nil
}

// Release deletes the scratch file. Only the first call has an effect.
func (u *Upload) Release() error {
	if u == nil {
		return nil
	}
	u.once.Do(func() {
		u.released.Store(true)
		if err := os.Remove(u.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			u.releaseErr = err
		}
	})
	return u.releaseErr
}
