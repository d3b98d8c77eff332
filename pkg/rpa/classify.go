package rpa

import "strings"

// Outcome priority order:
//
//  1. an intercepted structured response with an explicit status code;
//  2. DOM error indicators;
//  3. DOM success indicators or a neutral "completed" message;
//  4. no signal at all -> Ambiguous, never coerced to a proven success.
//
// DOM keyword scanning is inherently fragile and stays a last-resort
// fallback behind the structured-response path.

// classifyPayload inspects an intercepted confirmation payload. Status 0
// means success; any other explicit status is a failure.
func classifyPayload(payload map[string]any) (Outcome, string) {
	message, _ := firstString(payload, "message")

	switch status := payload["status"].(type) {
	case float64:
		if status == 0 {
			return OutcomeSuccess, defaultMsg(message, "operation successful")
		}
		return OutcomeFailure, defaultMsg(message, "operation failed")
	case string:
		if status == "0" {
			return OutcomeSuccess, defaultMsg(message, "operation successful")
		}
		return OutcomeFailure, defaultMsg(message, "operation failed")
	}

	if ok, isBool := payload["success"].(bool); isBool {
		if ok {
			return OutcomeSuccess, defaultMsg(message, "operation successful")
		}
		return OutcomeFailure, defaultMsg(message, "operation failed")
	}

	// A payload without an explicit status carries no verdict of its own.
	return OutcomeAmbiguous, message
}

// domIndicator is one keyword or selector probed during DOM fallback
// detection.
type domIndicator struct {
	strategy Strategy
}

var domErrorIndicators = []domIndicator{
	{Strategy{Kind: ByText, Pattern: "error"}},
	{Strategy{Kind: ByText, Pattern: "failed"}},
	{Strategy{Kind: ByCSS, Pattern: ".error"}},
	{Strategy{Kind: ByCSS, Pattern: ".toast-error"}},
}

var domSuccessIndicators = []domIndicator{
	{Strategy{Kind: ByText, Pattern: "success"}},
	{Strategy{Kind: ByText, Pattern: "issued"}},
	{Strategy{Kind: ByText, Pattern: "completed"}},
	{Strategy{Kind: ByCSS, Pattern: ".success"}},
	{Strategy{Kind: ByCSS, Pattern: ".toast-success"}},
}

// classifyFromDOM scans visible page text for failure and success keywords.
// Returns Ambiguous when nothing matched.
func (d *Driver) classifyFromDOM() (Outcome, string) {
	for _, ind := range domErrorIndicators {
		if el, ok := d.page.Find(ind.strategy, shortProbeTimeout); ok {
			return OutcomeFailure, strings.TrimSpace(el.Text())
		}
	}
	for _, ind := range domSuccessIndicators {
		if el, ok := d.page.Find(ind.strategy, shortProbeTimeout); ok {
			return OutcomeSuccess, strings.TrimSpace(el.Text())
		}
	}
	return OutcomeAmbiguous, ""
}

// classifyOutcome merges the intercepted payload and DOM signals.
// barcodeCleared is a weak positive used only to phrase the ambiguous
// message; it never upgrades the outcome.
func (d *Driver) classifyOutcome(payload map[string]any, barcodeCleared bool) (Outcome, string) {
	if payload != nil {
		outcome, msg := classifyPayload(payload)
		if outcome != OutcomeAmbiguous {
			return outcome, msg
		}
	}

	outcome, msg := d.classifyFromDOM()
	if outcome != OutcomeAmbiguous {
		return outcome, msg
	}

	if barcodeCleared {
		return OutcomeAmbiguous, "no explicit confirmation observed; the barcode field cleared, which usually indicates success"
	}
	return OutcomeAmbiguous, "no explicit confirmation observed"
}

func defaultMsg(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}
