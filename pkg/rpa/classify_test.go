package rpa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    Outcome
	}{
		{"numeric status zero", map[string]any{"status": float64(0)}, OutcomeSuccess},
		{"numeric status nonzero", map[string]any{"status": float64(3), "message": "already issued"}, OutcomeFailure},
		{"string status zero", map[string]any{"status": "0"}, OutcomeSuccess},
		{"string status nonzero", map[string]any{"status": "ERR"}, OutcomeFailure},
		{"success true", map[string]any{"success": true}, OutcomeSuccess},
		{"success false", map[string]any{"success": false}, OutcomeFailure},
		{"no verdict", map[string]any{"message": "queued"}, OutcomeAmbiguous},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, _ := classifyPayload(tt.payload)
			assert.Equal(t, tt.want, outcome)
		})
	}

	t.Run("payload message is carried through", func(t *testing.T) {
		_, msg := classifyPayload(map[string]any{"status": float64(7), "message": "book not found"})
		assert.Equal(t, "book not found", msg)
	})
}

func TestClassifyOutcome(t *testing.T) {
	t.Run("explicit payload status beats DOM signals", func(t *testing.T) {
		pg := newFakePage(testWorkspace)
		// A stale success toast is still on screen.
		pg.set(Strategy{Kind: ByText, Pattern: "success"}, visibleElement())
		d, _ := newTestDriver(t, pg)
		d.page = pg

		outcome, _ := d.classifyOutcome(map[string]any{"status": float64(5)}, true)
		assert.Equal(t, OutcomeFailure, outcome)
	})

	t.Run("falls back to DOM error indicators", func(t *testing.T) {
		pg := newFakePage(testWorkspace)
		errEl := visibleElement()
		errEl.text = "  Reader has unpaid fines  "
		pg.set(Strategy{Kind: ByText, Pattern: "error"}, errEl)
		d, _ := newTestDriver(t, pg)
		d.page = pg

		outcome, msg := d.classifyOutcome(nil, false)
		assert.Equal(t, OutcomeFailure, outcome)
		assert.Equal(t, "Reader has unpaid fines", msg)
	})

	t.Run("DOM errors beat DOM success", func(t *testing.T) {
		pg := newFakePage(testWorkspace)
		pg.set(Strategy{Kind: ByText, Pattern: "failed"}, visibleElement())
		pg.set(Strategy{Kind: ByText, Pattern: "success"}, visibleElement())
		d, _ := newTestDriver(t, pg)
		d.page = pg

		outcome, _ := d.classifyOutcome(nil, false)
		assert.Equal(t, OutcomeFailure, outcome)
	})

	t.Run("no signal at all stays ambiguous", func(t *testing.T) {
		pg := newFakePage(testWorkspace)
		d, _ := newTestDriver(t, pg)
		d.page = pg

		outcome, msg := d.classifyOutcome(nil, false)
		assert.Equal(t, OutcomeAmbiguous, outcome)
		assert.Contains(t, msg, "no explicit confirmation")
	})

	t.Run("a cleared barcode field only rephrases the ambiguity", func(t *testing.T) {
		pg := newFakePage(testWorkspace)
		d, _ := newTestDriver(t, pg)
		d.page = pg

		outcome, msg := d.classifyOutcome(nil, true)
		require.Equal(t, OutcomeAmbiguous, outcome, "a weak positive must not upgrade the outcome")
		assert.Contains(t, msg, "barcode field cleared")
	})

	t.Run("ambiguous payload falls through to the DOM", func(t *testing.T) {
		pg := newFakePage(testWorkspace)
		okEl := visibleElement()
		okEl.text = "Book issued"
		pg.set(Strategy{Kind: ByText, Pattern: "issued"}, okEl)
		d, _ := newTestDriver(t, pg)
		d.page = pg

		outcome, _ := d.classifyOutcome(map[string]any{"message": "queued"}, false)
		assert.Equal(t, OutcomeSuccess, outcome)
	})
}
