package rpa

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IssueItem lends a book item to a reader by driving the issuance UI:
// operation tab, reader selection, barcode, due date, confirmation. The
// reader match query is required; raw reader identifiers cannot be searched
// reliably in this UI.
func (d *Driver) IssueItem(req ActionRequest) ActionResult {
	req.Kind = OpIssue
	log := d.log.With(zap.String("op", uuid.NewString()[:8]),
		zap.String("kind", "issue"), zap.String("barcode", req.ItemBarcode))

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureWorkspaceLocked(); err != nil {
		return failedResult(req, err)
	}

	if req.ReaderMatchQuery == "" {
		// Nothing else is attempted: a degraded search by reader id alone
		// would select the wrong reader more often than the right one.
		log.Error("issue rejected: no reader match query", zap.Int64("reader_id", req.ReaderID))
		return failedResult(req, fmt.Errorf(
			"reader match query (card barcode or name) not provided; cannot search for reader %d in the UI", req.ReaderID))
	}

	d.selectOperationTab(d.selectors.IssueTab, "issuance", log)

	// Always re-run resolution: a previously selected reader may belong to
	// a prior request and must never be trusted.
	if err := d.selectReaderByMatch(req.ReaderMatchQuery); err != nil {
		return failedResult(req, err)
	}
	if !d.verifyReaderSelected() {
		return failedResult(req, fmt.Errorf("%w: cannot proceed with issue", ErrReaderNotSelected))
	}
	log.Info("reader verified as selected")

	barcode, ok := d.page.Find(d.selectors.BarcodeField[0], controlWaitTimeout)
	if !ok {
		return failedResult(req, notFound("barcode input", d.selectors.BarcodeField))
	}
	_ = barcode.Clear()
	if err := barcode.Fill(req.ItemBarcode); err != nil {
		return failedResult(req, fmt.Errorf("fill barcode: %w", err))
	}
	if err := barcode.Press("Enter"); err != nil {
		return failedResult(req, fmt.Errorf("open issuance dialog: %w", err))
	}
	d.sleep(shortProbeTimeout) // dialog animation

	if !d.dialogVisible() {
		log.Warn("issuance dialog not detected, continuing anyway")
	}

	due := time.Now().AddDate(0, 0, req.LoanDays).Format("2006-01-02")
	if !d.fillDueDate(due) {
		log.Warn("could not fill due date", zap.String("due", due))
	} else {
		log.Info("due date filled", zap.String("due", due))
	}

	// Observe the confirmation endpoint before clicking so the true
	// outcome is captured even if the UI is slow to reflect it.
	payload, stop := d.observeOutcome(issueEndpointGlob)
	defer stop()

	d.sleep(settlePause)
	if !d.clickConfirm("Issuance") {
		log.Warn("no confirm control found, pressing Enter")
		_ = d.page.PressKey("Enter")
	}

	captured := d.awaitPayload(payload, nil)

	outcome, message := d.classifyOutcome(captured, barcode.InputValue() == "")
	res := resultFrom(req, outcome, message, captured)
	if !res.OK {
		d.dismissModals()
	}
	log.Info("issue classified", zap.String("outcome", string(outcome)), zap.Bool("ok", res.OK))
	return res
}

// ReturnItem returns a book item via the UI. A reader match query is
// optional here: the remote system rejects an unselected-reader return on
// its own, and the desk may legitimately scan a return without identifying
// the reader first.
func (d *Driver) ReturnItem(req ActionRequest) ActionResult {
	req.Kind = OpReturn
	log := d.log.With(zap.String("op", uuid.NewString()[:8]),
		zap.String("kind", "return"), zap.String("barcode", req.ItemBarcode))

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureWorkspaceLocked(); err != nil {
		return failedResult(req, err)
	}

	d.selectOperationTab(d.selectors.ReturnTab, "return", log)

	if req.ReaderMatchQuery != "" {
		if err := d.selectReaderByMatch(req.ReaderMatchQuery); err != nil {
			if errors.Is(err, ErrReaderNotFound) {
				return failedResult(req, err)
			}
			// Selection was attempted but could not be confirmed; let the
			// remote system be the judge.
			log.Warn("reader selection unconfirmed before return", zap.Error(err))
		}
	} else {
		log.Warn("no reader match query provided for return, skipping reader selection")
	}

	barcode, ok := d.page.Find(d.selectors.BarcodeField[0], controlWaitTimeout)
	if !ok {
		return failedResult(req, notFound("barcode input", d.selectors.BarcodeField))
	}
	_ = barcode.Clear()
	if err := barcode.Fill(req.ItemBarcode); err != nil {
		return failedResult(req, fmt.Errorf("fill barcode: %w", err))
	}

	payload, stop := d.observeOutcome(returnEndpointGlob)
	defer stop()

	if !d.clickConfirm("Return") {
		if err := barcode.Press("Enter"); err != nil {
			return failedResult(req, fmt.Errorf("submit return: %w", err))
		}
	}

	rejected := false
	captured := d.awaitPayload(payload, func() bool {
		if d.handleSecurityDialog(log) {
			rejected = true
			return true
		}
		return false
	})
	if rejected {
		res := resultFrom(req, OutcomeSecurityRejection,
			"the book is checked out to a different reader; return rejected", nil)
		return res
	}

	outcome, message := d.classifyOutcome(captured, barcode.InputValue() == "")
	res := resultFrom(req, outcome, message, captured)
	if !res.OK {
		d.dismissModals()
	}
	log.Info("return classified", zap.String("outcome", string(outcome)), zap.Bool("ok", res.OK))
	return res
}

// selectOperationTab clicks the in-page issue/return toggle. Failure is not
// fatal: the toggle may already be in the right position.
func (d *Driver) selectOperationTab(chain Chain, name string, log *zap.Logger) {
	if el, ok := findVisible(d.page, chain); ok {
		if err := el.Click(2 * time.Second); err == nil {
			d.sleep(tabSwitchPause)
			return
		}
	}
	log.Warn("could not click operation toggle, continuing", zap.String("tab", name))
}

// dialogVisible reports whether any modal dialog is currently shown.
func (d *Driver) dialogVisible() bool {
	for _, sel := range []string{"[role='dialog']", ".modal", ".dialog", "[class*='modal']", "[class*='dialog']"} {
		if _, ok := d.page.Find(Strategy{Kind: ByCSS, Pattern: sel}, shortProbeTimeout); ok {
			return true
		}
	}
	return false
}

// fillDueDate locates the due date field and enters the date, verifying the
// value stuck. Tab commits the value; Enter is the alternate commit key when
// the first attempt leaves the field empty.
func (d *Driver) fillDueDate(date string) bool {
	field := d.locateDueDateField()
	if field == nil {
		return false
	}

	commit := func(key string) bool {
		_ = field.Click(strategyProbeTimeout)
		_ = field.Press("Control+a")
		if err := field.Fill(date); err != nil {
			return false
		}
		d.sleep(200 * time.Millisecond)
		_ = field.Press(key)
		d.sleep(settlePause)
		return field.InputValue() != ""
	}
	return commit("Tab") || commit("Enter")
}

// locateDueDateField resolves the date input through the selector chain,
// confirming the candidate actually looks like a date field, then falls back
// to label association.
func (d *Driver) locateDueDateField() element {
	for _, s := range d.selectors.DueDateField {
		el, ok := d.page.Find(s, strategyProbeTimeout)
		if !ok {
			continue
		}
		placeholder := strings.ToLower(el.Attr("placeholder"))
		if el.Attr("type") == "date" ||
			strings.Contains(placeholder, "date") ||
			strings.Contains(placeholder, "дату") ||
			strings.Contains(placeholder, "выберите") {
			return el
		}
	}

	for _, lab := range d.page.All("label") {
		text := strings.ToLower(lab.Text())
		if !strings.Contains(text, "return-date") && !strings.Contains(text, "return date") {
			continue
		}
		if forID := lab.Attr("for"); forID != "" {
			if el, ok := d.page.Find(Strategy{Kind: ByCSS, Pattern: "#" + forID}, time.Second); ok {
				return el
			}
		}
		if el, ok := lab.Find("input", time.Second); ok {
			return el
		}
	}
	return nil
}

// observeOutcome installs a response observer for the given confirmation
// endpoint. The returned getter yields the captured payload, nil until one
// arrives.
func (d *Driver) observeOutcome(endpoint interface{ Match(string) bool }) (get func() map[string]any, stop func()) {
	var mu sync.Mutex
	var captured map[string]any
	remove := d.page.OnResponse(func(r netResponse) {
		if !endpoint.Match(r.URL()) {
			return
		}
		if m := decodeJSONBody(r); m != nil {
			mu.Lock()
			captured = m
			mu.Unlock()
		}
	})
	return func() map[string]any {
		mu.Lock()
		defer mu.Unlock()
		return captured
	}, remove
}

// awaitPayload polls for the captured confirmation payload, invoking the
// optional interrupt check each round. Returns nil when the window closes
// without a response.
func (d *Driver) awaitPayload(get func() map[string]any, interrupted func() bool) map[string]any {
	for i := 0; i < outcomePollTries; i++ {
		d.sleep(outcomePollPause)
		if interrupted != nil && interrupted() {
			return nil
		}
		if p := get(); p != nil {
			return p
		}
	}
	return get()
}

// clickConfirm clicks the confirmation control carrying the given text,
// excluding tab elements (which carry aria-selected).
func (d *Driver) clickConfirm(text string) bool {
	for _, sel := range []string{
		fmt.Sprintf("button:has-text('%s')", text),
		"button[type='submit']",
		fmt.Sprintf("[role='button']:has-text('%s')", text),
	} {
		for _, btn := range d.page.All(sel) {
			if btn.Attr("aria-selected") != "" {
				continue // operation tab, not the dialog control
			}
			if !btn.Visible(shortProbeTimeout) {
				continue
			}
			if err := btn.Click(strategyProbeTimeout); err == nil {
				return true
			}
		}
	}
	return false
}

// handleSecurityDialog checks for the "book is given to another reader"
// confirmation dialog. When present, the return is rejected outright: the
// dialog is cancelled (never confirmed) regardless of any other signal.
func (d *Driver) handleSecurityDialog(log *zap.Logger) bool {
	modal, ok := d.page.Find(Strategy{Kind: ByCSS, Pattern: ".ant-modal-confirm"}, 200*time.Millisecond)
	if !ok {
		return false
	}
	text := strings.ToLower(modal.Text())
	if !strings.Contains(text, "given to another reader") &&
		!(strings.Contains(text, "warning") && strings.Contains(text, "book")) {
		return false
	}

	log.Warn("security interlock: book is checked out to a different reader, rejecting return")

	cancelled := false
	for _, btn := range modal.All(".ant-modal-confirm-btns button") {
		label := btn.Text()
		if strings.Contains(label, "Cancel") || strings.Contains(label, "Отмена") {
			if err := btn.Click(strategyProbeTimeout); err == nil {
				cancelled = true
			}
			break
		}
	}
	if !cancelled {
		_ = d.page.PressKey("Escape")
	}
	d.sleep(settlePause)
	return true
}

// dismissModals closes any lingering dialog after a failure so the session
// is clean for the next operation. Escape is the universal fallback.
func (d *Driver) dismissModals() {
	if btn, ok := findVisible(d.page, d.selectors.ModalClose); ok {
		if err := btn.Click(strategyProbeTimeout); err == nil {
			d.sleep(settlePause)
			return
		}
	}
	_ = d.page.PressKey("Escape")
	d.sleep(200 * time.Millisecond)
}

// failedResult converts an operation-boundary error into a structured
// result; no error crosses into the caller.
func failedResult(req ActionRequest, err error) ActionResult {
	return ActionResult{
		OK:       false,
		Outcome:  OutcomeFailure,
		Message:  err.Error(),
		Barcode:  req.ItemBarcode,
		ReaderID: req.ReaderID,
		LoanDays: req.LoanDays,
	}
}

func resultFrom(req ActionRequest, outcome Outcome, message string, payload map[string]any) ActionResult {
	return ActionResult{
		OK:                outcome == OutcomeSuccess || outcome == OutcomeAmbiguous,
		Outcome:           outcome,
		Message:           message,
		Barcode:           req.ItemBarcode,
		ReaderID:          req.ReaderID,
		LoanDays:          req.LoanDays,
		SecurityRejection: outcome == OutcomeSecurityRejection,
		RawResponse:       payload,
	}
}
