package failure

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindCategory(t *testing.T) {
	tests := []struct {
		kind     Kind
		name     string
		category Category
	}{
		{KindTimeout, "timeout", CategoryNetwork},
		{KindTransport, "transport", CategoryNetwork},
		{KindHTTPStatus, "http-status", CategoryNetwork},
		{KindCancelled, "cancelled", CategoryNetwork},
		{KindMalformedJSON, "malformed-json", CategoryDecode},
		{KindSchemaMismatch, "schema-mismatch", CategoryDecode},
		{KindCreateConflict, "create-conflict", CategoryFilesystem},
		{KindPermission, "permission", CategoryFilesystem},
		{KindFilesystem, "filesystem", CategoryFilesystem},
		{KindUnknown, "unknown", CategoryUnknown},
		{Kind(99), "unknown", CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.kind.String())
			assert.Equal(t, tt.category, tt.kind.Category())
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := &Error{
		Kind:       KindHTTPStatus,
		Op:         "fetch listing",
		URL:        "https://a.4cdn.org/gif/thread/1.json",
		StatusCode: 404,
	}
	assert.Equal(t, "fetch listing: http-status 404 (https://a.4cdn.org/gif/thread/1.json)", err.Error())

	err = New(KindTransport, "download", errors.New("connection reset"))
	assert.Equal(t, "download: transport: connection reset", err.Error())
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", New(KindSchemaMismatch, "fetch catalog", nil))

	assert.Equal(t, KindSchemaMismatch, KindOf(wrapped))
	assert.Equal(t, KindCancelled, KindOf(context.Canceled))
	assert.Equal(t, KindTimeout, KindOf(fmt.Errorf("x: %w", context.DeadlineExceeded)))
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestErrorsIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("wrap: %w", New(KindTimeout, "download", nil))

	assert.True(t, errors.Is(err, &Error{Kind: KindTimeout}))
	assert.False(t, errors.Is(err, &Error{Kind: KindTransport}))
}

func TestAs(t *testing.T) {
	assert.Nil(t, As(nil))

	plain := errors.New("boom")
	fe := As(plain)
	require.NotNil(t, fe)
	assert.Equal(t, KindUnknown, fe.Kind)
	assert.ErrorIs(t, fe, plain)

	orig := New(KindPermission, "create", nil)
	assert.Same(t, orig, As(fmt.Errorf("x: %w", orig)))
}

func TestFromFS(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.webm")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	require.Error(t, err)

	fe := FromFS("create", path, err)
	assert.Equal(t, KindCreateConflict, fe.Kind)
	assert.Equal(t, path, fe.Path)

	_, err = os.Open(filepath.Join(dir, "missing"))
	require.Error(t, err)
	assert.Equal(t, KindFilesystem, FromFS("open", "missing", err).Kind)

	assert.Equal(t, KindPermission, FromFS("create", path, os.ErrPermission).Kind)
}
