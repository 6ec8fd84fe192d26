package jsonutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshal(t *testing.T) {
	t.Run("valid object", func(t *testing.T) {
		var result map[string]any
		require.NoError(t, Unmarshal([]byte(`{"name":"test","value":42}`), &result))
		assert.Equal(t, "test", result["name"])
	})

	t.Run("invalid json", func(t *testing.T) {
		var result map[string]any
		assert.Error(t, Unmarshal([]byte(`{invalid}`), &result))
	})
}

func TestOrderedFields_PreservesDocumentOrder(t *testing.T) {
	t.Parallel()

	fields, err := OrderedFields([]byte(`{"zeta":"1","alpha":"2","mid":{"x":[1,2]}}`))
	require.NoError(t, err)
	require.Len(t, fields, 3)

	assert.Equal(t, "zeta", fields[0].Key)
	assert.Equal(t, "alpha", fields[1].Key)
	assert.Equal(t, "mid", fields[2].Key)

	var s string
	require.NoError(t, Unmarshal(fields[1].Value, &s))
	assert.Equal(t, "2", s)
}

func TestOrderedFields_KeysAfterNestedValues(t *testing.T) {
	t.Parallel()

	data := []byte(`{"scanners":[{"scanner":"nmap","ports":"-p %s"},{"scanner":"masscan"}],"version":"2","extra":{"a":{"b":1}}}`)
	var (
		fields []Field
		err    error
	)
	require.NotPanics(t, func() { fields, err = OrderedFields(data) })
	require.NoError(t, err)
	require.Len(t, fields, 3)
	assert.Equal(t, []string{"scanners", "version", "extra"}, []string{fields[0].Key, fields[1].Key, fields[2].Key})
	assert.JSONEq(t, `{"a":{"b":1}}`, string(fields[2].Value))

	_, err = OrderedFields([]byte(`{"ok":1,"broken":[1,}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"broken"`)
}

func TestOrderedFields_RejectsNonObject(t *testing.T) {
	t.Parallel()

	_, err := OrderedFields([]byte(`[1,2,3]`))
	assert.ErrorIs(t, err, ErrNotObject)

	_, err = OrderedFields([]byte(`{"a":`))
	assert.Error(t, err)
}

func TestOrderedFields_Empty(t *testing.T) {
	t.Parallel()

	fields, err := OrderedFields([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestWriteFile_ReplacesExisting(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, os.WriteFile(path, []byte("stale content that is long"), 0o644))

	require.NoError(t, WriteFile(path, map[string]int{"jobs": 3}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got map[string]int
	require.NoError(t, Unmarshal(data, &got))
	assert.Equal(t, 3, got["jobs"])
}
