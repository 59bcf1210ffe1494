package projectstore

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"storyforge/internal/services"
)

// Handle is a validated capability over an absolute project directory path.
// Holding a Handle means the directory existed and was writable the last
// time Validate ran; callers re-validate per session, not per operation.
type Handle struct {
	path string
}

// NewHandle wraps an absolute directory path without touching the
// filesystem; call Validate before use.
func NewHandle(path string) (Handle, error) {
	if path == "" {
		return Handle{}, errors.New("projectstore: empty directory path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return Handle{}, err
	}
	return Handle{path: abs}, nil
}

// Path returns the directory the handle wraps.
func (h Handle) Path() string { return h.path }

// IsZero reports whether the handle wraps nothing.
func (h Handle) IsZero() bool { return h.path == "" }

// Validate re-checks the capability: the directory must exist, be a
// directory, and allow read and write access. A missing directory is a
// stale handle; an access failure is a permission problem the user can fix
// by re-granting.
func (h Handle) Validate(ctx context.Context) error {
	if h.IsZero() {
		return services.Wrap(services.ErrStaleHandle, "storage", "validate", "no project directory selected", nil)
	}
	if ctx != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	info, err := os.Stat(h.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return services.Wrap(services.ErrStaleHandle, "storage", "validate", "project directory no longer exists", err)
	case errors.Is(err, fs.ErrPermission):
		return services.Wrap(services.ErrPermissionDenied, "storage", "validate", "project directory not accessible", err)
	case err != nil:
		return services.Wrap(nil, "storage", "validate", "stat project directory", err)
	}
	if !info.IsDir() {
		return services.Wrap(services.ErrStaleHandle, "storage", "validate", "project path is not a directory", nil)
	}
	if _, err := os.ReadDir(h.path); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return services.Wrap(services.ErrPermissionDenied, "storage", "validate", "project directory not readable", err)
		}
		return services.Wrap(nil, "storage", "validate", "read project directory", err)
	}
	probe, err := os.CreateTemp(h.path, ".storyforge-probe-*")
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return services.Wrap(services.ErrPermissionDenied, "storage", "validate", "project directory not writable", err)
		}
		return services.Wrap(nil, "storage", "validate", "write probe", err)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)
	return nil
}

// AcquireHandle resolves the project directory capability. The remembered
// path in kv is tried first; a stale remembered path is forgotten. When no
// usable handle exists and promptIfMissing is set, prompt supplies a new
// path which is validated and remembered. A nil handle with nil error means
// no directory is available and the caller should fall back to kv-only
// archive records.
func AcquireHandle(ctx context.Context, kv *KV, promptIfMissing bool, prompt func(context.Context) (string, error)) (Handle, error) {
	if remembered, ok, err := kv.Get(ctx, KeyProjectDir); err != nil {
		return Handle{}, err
	} else if ok {
		handle, err := NewHandle(string(remembered))
		if err == nil {
			switch validateErr := handle.Validate(ctx); {
			case validateErr == nil:
				return handle, nil
			case errors.Is(validateErr, services.ErrPermissionDenied):
				return Handle{}, validateErr
			default:
				// Stale capability: forget it and fall through to the
				// prompt path.
				if err := kv.Delete(ctx, KeyProjectDir); err != nil {
					return Handle{}, err
				}
			}
		}
	}

	if !promptIfMissing || prompt == nil {
		return Handle{}, nil
	}
	path, err := prompt(ctx)
	if err != nil || path == "" {
		// A cancelled prompt is not an error; the session just runs
		// without a project directory.
		return Handle{}, err
	}
	handle, err := NewHandle(path)
	if err != nil {
		return Handle{}, err
	}
	if err := handle.Validate(ctx); err != nil {
		return Handle{}, err
	}
	if err := kv.Set(ctx, KeyProjectDir, []byte(handle.Path())); err != nil {
		return Handle{}, err
	}
	return handle, nil
}
