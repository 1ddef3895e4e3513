package vault

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"vrec-go/internal/vr"
)

// FileSystemVault is a filesystem-based implementation of the Vault interface.
// It stores content and metadata as files in a directory structure:
//
//	<root>/
//	  content/
//	    <key>                  (one file per payload)
//	  metadata/
//	    <scope>.<name>         (profile JSON, database snapshots)
//	    <scope>.<name>.version
type FileSystemVault struct {
	name        string
	root        string
	contentDir  string
	metadataDir string
}

// NewFileSystemVault creates a new filesystem vault rooted at the given path.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	contentDir := filepath.Join(root, "content")
	metadataDir := filepath.Join(root, "metadata")

	// Create directory structure
	if err := os.MkdirAll(contentDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create content directory: %w", err)
	}
	if err := os.MkdirAll(metadataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create metadata directory: %w", err)
	}

	return &FileSystemVault{
		name:        name,
		root:        root,
		contentDir:  contentDir,
		metadataDir: metadataDir,
	}, nil
}

// checkName rejects names that would escape the vault directory.
func checkName(kind, s string) error {
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) || strings.HasPrefix(s, ".tmp-") {
		return fmt.Errorf("invalid %s %q: %w", kind, s, vr.ErrInvalidInput)
	}
	return nil
}

func (v *FileSystemVault) contentPath(key string) (string, error) {
	if err := checkName("content key", key); err != nil {
		return "", err
	}
	return filepath.Join(v.contentDir, key), nil
}

func (v *FileSystemVault) metadataPath(scope, name string) (string, error) {
	if err := checkName("metadata scope", scope); err != nil {
		return "", err
	}
	if err := checkName("metadata name", name); err != nil {
		return "", err
	}
	return filepath.Join(v.metadataDir, scope+"."+name), nil
}

// PutContent stores the payload for key, replacing any previous value.
func (v *FileSystemVault) PutContent(ctx context.Context, key string, r io.Reader, size int64) error {
	destPath, err := v.contentPath(key)
	if err != nil {
		return err
	}
	return v.writeFile(destPath, r, size)
}

// GetContent retrieves the payload for key and writes it to w.
func (v *FileSystemVault) GetContent(ctx context.Context, key string, w io.Writer) error {
	srcPath, err := v.contentPath(key)
	if err != nil {
		return err
	}
	return v.readFile(srcPath, w, "content "+key)
}

// DeleteContent removes the payload for key. Absent keys are ignored.
func (v *FileSystemVault) DeleteContent(ctx context.Context, key string) error {
	path, err := v.contentPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove content: %w", err)
	}
	return nil
}

// PutMetadata stores a named metadata item under scope along with a version marker.
func (v *FileSystemVault) PutMetadata(ctx context.Context, scope, name string, r io.Reader, size int64, version int64) error {
	destPath, err := v.metadataPath(scope, name)
	if err != nil {
		return err
	}
	if err := v.writeFile(destPath, r, size); err != nil {
		return err
	}

	// Write version file
	versionData := strconv.FormatInt(version, 10)
	return v.writeFile(destPath+".version", strings.NewReader(versionData), int64(len(versionData)))
}

// GetMetadataVersion returns the version of a named metadata item.
// Returns 0 if no version file exists.
func (v *FileSystemVault) GetMetadataVersion(ctx context.Context, scope, name string) (int64, error) {
	path, err := v.metadataPath(scope, name)
	if err != nil {
		return 0, err
	}
	data, err := os.ReadFile(path + ".version")
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading version file: %w", err)
	}

	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// GetMetadata retrieves a named metadata item and writes it to w.
func (v *FileSystemVault) GetMetadata(ctx context.Context, scope, name string, w io.Writer) error {
	srcPath, err := v.metadataPath(scope, name)
	if err != nil {
		return err
	}
	return v.readFile(srcPath, w, fmt.Sprintf("metadata %q for %s", name, scope))
}

// ValidateSetup verifies that the vault directories are accessible.
func (v *FileSystemVault) ValidateSetup(ctx context.Context) error {
	// Check that root directory exists and is a directory
	info, err := os.Stat(v.root)
	if err != nil {
		return fmt.Errorf("vault root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault root is not a directory: %s", v.root)
	}

	// Check that subdirectories exist and are writable
	for _, dir := range []string{v.contentDir, v.metadataDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("vault directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("vault path is not a directory: %s", dir)
		}
	}

	return nil
}

// writeFile writes data from r to the specified path using atomic write (temp file + rename).
func (v *FileSystemVault) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	// Create temp file in the same directory to ensure atomic rename works
	dir := filepath.Dir(destPath)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Clean up temp file on failure
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// readFile reads from the specified path and writes to w.
func (v *FileSystemVault) readFile(srcPath string, w io.Writer, what string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", what, vr.ErrNotFound)
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	return nil
}

// Compile-time check that FileSystemVault implements vr.Vault interface
var _ vr.Vault = (*FileSystemVault)(nil)
