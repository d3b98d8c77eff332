package rpa

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindVisible(t *testing.T) {
	chain := Chain{
		{Kind: ByPlaceholder, Pattern: "Primary"},
		{Kind: ByCSS, Pattern: "#secondary"},
		{Kind: ByCSS, Pattern: "#tertiary"},
	}

	t.Run("returns the first visible candidate in chain order", func(t *testing.T) {
		pg := newFakePage(testWorkspace)
		second := visibleElement()
		third := visibleElement()
		pg.set(chain[1], second)
		pg.set(chain[2], third)

		el, ok := findVisible(pg, chain)
		require.True(t, ok)
		assert.Same(t, second, el.(*fakeElement))
	})

	t.Run("skips candidates that exist but are not visible", func(t *testing.T) {
		pg := newFakePage(testWorkspace)
		pg.set(chain[0], &fakeElement{visible: false})
		third := visibleElement()
		pg.set(chain[2], third)

		el, ok := findVisible(pg, chain)
		require.True(t, ok)
		assert.Same(t, third, el.(*fakeElement))
	})

	t.Run("reports exhaustion of the whole chain", func(t *testing.T) {
		pg := newFakePage(testWorkspace)
		_, ok := findVisible(pg, chain)
		assert.False(t, ok)
	})
}

func TestStrategyString(t *testing.T) {
	assert.Equal(t, `css="#login"`, Strategy{Kind: ByCSS, Pattern: "#login"}.String())
	assert.Equal(t, `role="button"[name="Sign in"]`,
		Strategy{Kind: ByRole, Pattern: "button", Name: "Sign in"}.String())
}

func TestDefaultSelectors(t *testing.T) {
	set := DefaultSelectors()

	// The issue toggle must be scoped to the radio group before any broader
	// fallback, or the navigation entry with the same label gets clicked.
	require.NotEmpty(t, set.IssueTab)
	assert.Contains(t, set.IssueTab[0].Pattern, "ant-radio-group")

	assert.NotEmpty(t, set.EmailField)
	assert.NotEmpty(t, set.PasswordField)
	assert.NotEmpty(t, set.LoginButton)
	assert.NotEmpty(t, set.ReaderSearch)
	assert.NotEmpty(t, set.BarcodeField)
	assert.NotEmpty(t, set.DueDateField)
	assert.NotEmpty(t, set.ModalClose)
}

func TestLoadSelectors(t *testing.T) {
	t.Run("empty path returns the defaults", func(t *testing.T) {
		set, err := LoadSelectors("")
		require.NoError(t, err)
		assert.Equal(t, DefaultSelectors(), set)
	})

	t.Run("overrides only the chains present in the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "selectors.yaml")
		data := `
barcode_field:
  - kind: placeholder
    pattern: "Scan item"
  - kind: css
    pattern: "input[name='barcode']"
`
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

		set, err := LoadSelectors(path)
		require.NoError(t, err)

		require.Len(t, set.BarcodeField, 2)
		assert.Equal(t, Strategy{Kind: ByPlaceholder, Pattern: "Scan item"}, set.BarcodeField[0])
		assert.Equal(t, DefaultSelectors().ReaderSearch, set.ReaderSearch,
			"chains absent from the override file keep their defaults")
	})

	t.Run("rejects unreadable files", func(t *testing.T) {
		_, err := LoadSelectors(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("rejects malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "selectors.yaml")
		require.NoError(t, os.WriteFile(path, []byte("barcode_field: {broken"), 0o644))
		_, err := LoadSelectors(path)
		assert.Error(t, err)
	})
}
