package vault

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"vrec-go/internal/vr"
)

// testVaultContract exercises the behavior every Vault implementation shares.
func testVaultContract(t *testing.T, newVault func(t *testing.T) vr.Vault) {
	ctx := context.Background()

	t.Run("put and get content", func(t *testing.T) {
		tests := []struct {
			name    string
			key     string
			content string
		}{
			{"small payload", "rec-1.abc", "hello world"},
			{"empty payload", "rec-2.e3b0", ""},
			{"large payload", "rec-3.def", strings.Repeat("x", 100000)},
		}

		v := newVault(t)
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if err := v.PutContent(ctx, tt.key, strings.NewReader(tt.content), int64(len(tt.content))); err != nil {
					t.Fatalf("PutContent() error = %v", err)
				}

				var buf bytes.Buffer
				if err := v.GetContent(ctx, tt.key, &buf); err != nil {
					t.Fatalf("GetContent() error = %v", err)
				}
				if buf.String() != tt.content {
					t.Errorf("GetContent() returned %d bytes, want %d", buf.Len(), len(tt.content))
				}
			})
		}
	})

	t.Run("put replaces content", func(t *testing.T) {
		v := newVault(t)
		for _, content := range []string{"first", "second"} {
			if err := v.PutContent(ctx, "k", strings.NewReader(content), int64(len(content))); err != nil {
				t.Fatalf("PutContent(%q) error = %v", content, err)
			}
		}

		var buf bytes.Buffer
		if err := v.GetContent(ctx, "k", &buf); err != nil {
			t.Fatalf("GetContent() error = %v", err)
		}
		if buf.String() != "second" {
			t.Errorf("GetContent() = %q, want %q", buf.String(), "second")
		}
	})

	t.Run("missing content is not found", func(t *testing.T) {
		v := newVault(t)

		var buf bytes.Buffer
		err := v.GetContent(ctx, "nonexistent", &buf)
		if !errors.Is(err, vr.ErrNotFound) {
			t.Errorf("GetContent() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("delete content is idempotent", func(t *testing.T) {
		v := newVault(t)
		if err := v.PutContent(ctx, "k", strings.NewReader("data"), 4); err != nil {
			t.Fatalf("PutContent() error = %v", err)
		}

		for i := 0; i < 2; i++ {
			if err := v.DeleteContent(ctx, "k"); err != nil {
				t.Fatalf("DeleteContent() call %d error = %v", i+1, err)
			}
		}

		var buf bytes.Buffer
		if err := v.GetContent(ctx, "k", &buf); !errors.Is(err, vr.ErrNotFound) {
			t.Errorf("GetContent() after delete error = %v, want ErrNotFound", err)
		}
	})

	t.Run("metadata round trip with version", func(t *testing.T) {
		v := newVault(t)

		version, err := v.GetMetadataVersion(ctx, "owner-1", "profile")
		if err != nil || version != 0 {
			t.Fatalf("GetMetadataVersion() before put = %d, %v; want 0, nil", version, err)
		}

		data := `{"display_name":"Alice"}`
		if err := v.PutMetadata(ctx, "owner-1", "profile", strings.NewReader(data), int64(len(data)), 42); err != nil {
			t.Fatalf("PutMetadata() error = %v", err)
		}

		var buf bytes.Buffer
		if err := v.GetMetadata(ctx, "owner-1", "profile", &buf); err != nil {
			t.Fatalf("GetMetadata() error = %v", err)
		}
		if buf.String() != data {
			t.Errorf("GetMetadata() = %q, want %q", buf.String(), data)
		}

		version, err = v.GetMetadataVersion(ctx, "owner-1", "profile")
		if err != nil || version != 42 {
			t.Errorf("GetMetadataVersion() = %d, %v; want 42, nil", version, err)
		}

		// Other names in the same scope stay independent
		if version, _ := v.GetMetadataVersion(ctx, "owner-1", "db"); version != 0 {
			t.Errorf("GetMetadataVersion(db) = %d, want 0", version)
		}
	})

	t.Run("missing metadata is not found", func(t *testing.T) {
		v := newVault(t)

		var buf bytes.Buffer
		err := v.GetMetadata(ctx, "nobody", "profile", &buf)
		if !errors.Is(err, vr.ErrNotFound) {
			t.Errorf("GetMetadata() error = %v, want ErrNotFound", err)
		}
	})
}
