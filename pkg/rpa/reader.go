package rpa

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const dropdownOpenSelector = ".ant-select-dropdown:not(.ant-select-dropdown-hidden)"

// SearchReaders types the query into the workspace search input and captures
// the matching reader records from the intercepted search response. The
// reader's opaque identifier is not always present in the primary payload,
// so two enrichment passes back-fill it: DOM attribute inspection, then
// clicking identifier-less results to provoke a profile request. An
// identifier that cannot be observed stays zero; it is never guessed.
func (d *Driver) SearchReaders(query string, limit int) ([]ReaderRecord, error) {
	if limit <= 0 {
		limit = DefaultMaxResults
	}
	log := d.log.With(zap.String("op", uuid.NewString()[:8]), zap.String("query", query))

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureWorkspaceLocked(); err != nil {
		return nil, err
	}

	input, ok := d.page.Find(d.selectors.ReaderSearch[0], controlWaitTimeout)
	if !ok {
		return nil, notFound("reader search input", d.selectors.ReaderSearch)
	}

	// Observers must be in place before the search is triggered.
	var (
		obsMu       sync.Mutex
		records     []ReaderRecord
		lastClicked int64
	)
	removeResp := d.page.OnResponse(func(r netResponse) {
		u := r.URL()
		switch {
		case searchEndpointGlob.Match(u):
			if r.Status() < 200 || r.Status() >= 300 {
				return
			}
			body, err := r.Body()
			if err != nil {
				return
			}
			if recs := parseReaderList(body); len(recs) > 0 {
				obsMu.Lock()
				records = recs
				obsMu.Unlock()
			}
		case profileEndpointGlob.Match(u):
			if m := decodeJSONBody(r); m != nil {
				if id := readerIDFromEntry(m); id != 0 {
					obsMu.Lock()
					lastClicked = id
					obsMu.Unlock()
				}
			}
		}
	})
	removeReq := d.page.OnRequest(func(r netRequest) {
		if !profileEndpointGlob.Match(r.URL()) {
			return
		}
		if id := readerIDFromRequest(r.URL(), r.PostData()); id != 0 {
			obsMu.Lock()
			lastClicked = id
			obsMu.Unlock()
		}
	})
	defer removeResp()
	defer removeReq()

	if err := input.Clear(); err != nil {
		return nil, fmt.Errorf("clear search input: %w", err)
	}
	// Typing character by character triggers the autocomplete; setting the
	// value directly does not.
	if err := input.TypeSlowly(query, typeDelay); err != nil {
		return nil, fmt.Errorf("type search query: %w", err)
	}
	d.sleep(200 * time.Millisecond)
	if err := input.Press("Enter"); err != nil {
		log.Warn("enter keypress on search input failed", zap.Error(err))
	}

	count := func() int {
		obsMu.Lock()
		defer obsMu.Unlock()
		return len(records)
	}
	for waited := time.Duration(0); waited < searchWaitTimeout && count() == 0; waited += searchWaitInterval {
		d.sleep(searchWaitInterval)
	}
	if count() == 0 {
		log.Warn("no search response intercepted, waiting once more")
		d.sleep(time.Second)
	}
	d.sleep(settlePause) // let the result list render

	obsMu.Lock()
	found := make([]ReaderRecord, len(records))
	copy(found, records)
	obsMu.Unlock()

	d.enrichFromDOM(found)
	d.enrichByProbing(found, &obsMu, &lastClicked, log)

	log.Info("reader search complete", zap.Int("results", len(found)))
	if len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

// enrichFromDOM fills missing identifiers from identifier-bearing attributes
// on the rendered result elements.
func (d *Driver) enrichFromDOM(records []ReaderRecord) {
	elements := d.page.All("[data-reader-id], [data-id], .reader-item, .search-result-item")
	for i := range records {
		if records[i].ExternalID != 0 || i >= len(elements) {
			continue
		}
		attr := elements[i].Attr("data-reader-id")
		if attr == "" {
			attr = elements[i].Attr("data-id")
		}
		if attr == "" {
			continue
		}
		if id, err := strconv.ParseInt(attr, 10, 64); err == nil {
			records[i].ExternalID = id
		}
	}
}

// enrichByProbing clicks results that still lack an identifier so the
// resulting profile request reveals it, closing any popup afterwards.
// Bounded to the first few to keep a broad search responsive.
func (d *Driver) enrichByProbing(records []ReaderRecord, obsMu *sync.Mutex, lastClicked *int64, log *zap.Logger) {
	var missing []int
	for i := range records {
		if records[i].ExternalID == 0 {
			missing = append(missing, i)
		}
	}
	if len(missing) == 0 {
		return
	}

	var elements []element
	for _, sel := range []string{
		".result", "[role='option']", ".reader-item", ".search-result",
		"[data-reader-id]", "[data-id]",
		"div[class*='result']", "div[class*='item']", "li[class*='result']",
	} {
		if els := d.page.All(sel); len(els) >= len(records) {
			elements = els
			break
		}
	}
	if elements == nil {
		return
	}

	if len(missing) > maxProfileProbes {
		missing = missing[:maxProfileProbes]
	}
	for _, idx := range missing {
		if idx >= len(elements) {
			continue
		}
		obsMu.Lock()
		*lastClicked = 0
		obsMu.Unlock()

		el := elements[idx]
		el.ScrollIntoView()
		d.sleep(100 * time.Millisecond)
		if err := el.Click(strategyProbeTimeout); err != nil {
			log.Debug("probe click failed", zap.Int("index", idx), zap.Error(err))
			continue
		}
		d.sleep(400 * time.Millisecond)

		obsMu.Lock()
		if *lastClicked != 0 {
			records[idx].ExternalID = *lastClicked
			log.Info("back-filled reader id by probing", zap.Int("index", idx), zap.Int64("reader_id", *lastClicked))
		}
		obsMu.Unlock()

		_ = d.page.PressKey("Escape")
		d.sleep(100 * time.Millisecond)
	}
}

// selectReaderByMatch selects exactly the dropdown option whose visible text
// contains the query (case-insensitive). The dropdown initially shows an
// unfiltered generic list before the filtered one replaces it, so the first
// rendered option must never be clicked blindly; we poll until an option
// actually matching the query appears and fail explicitly otherwise.
func (d *Driver) selectReaderByMatch(query string) error {
	input, ok := d.page.Find(d.selectors.ReaderSearch[0], controlWaitTimeout)
	if !ok {
		return notFound("reader search input", d.selectors.ReaderSearch)
	}

	// Activate and empty the field; leftover text from a previous
	// operation does not mean a reader is selected.
	if err := input.Click(strategyProbeTimeout); err != nil {
		return fmt.Errorf("activate search input: %w", err)
	}
	d.sleep(shortProbeTimeout)
	_ = input.Clear()
	d.sleep(settlePause)
	if v := input.InputValue(); strings.TrimSpace(v) != "" {
		_ = input.Press("Control+a")
		_ = input.Press("Delete")
		d.sleep(200 * time.Millisecond)
	}
	_ = input.Click(strategyProbeTimeout)
	d.sleep(settlePause)

	if err := input.TypeSlowly(query, typeDelay); err != nil {
		return fmt.Errorf("type reader query: %w", err)
	}
	d.sleep(shortProbeTimeout)

	for i := 0; i < dropdownAppearTries; i++ {
		if _, ok := d.page.Find(Strategy{Kind: ByCSS, Pattern: dropdownOpenSelector}, dropdownAppearPause); ok {
			break
		}
		d.sleep(dropdownAppearPause)
	}

	option := d.awaitMatchingOption(query)
	if option == nil {
		return fmt.Errorf("%w: no option matched %q within the polling window", ErrReaderNotFound, query)
	}

	option.ScrollIntoView()
	d.sleep(200 * time.Millisecond)

	// The option's content div is the reliable click target; fall back to
	// the option itself.
	clicked := false
	if content, ok := option.Find(".ant-select-item-option-content", time.Second); ok {
		clicked = content.Click(3*time.Second) == nil
	}
	if !clicked {
		if err := option.Click(3 * time.Second); err != nil {
			return fmt.Errorf("click matched option: %w", err)
		}
	}

	// A click is never trusted; the details panel must confirm it.
	d.sleep(2500 * time.Millisecond)
	if d.verifyReaderSelected() {
		return nil
	}
	d.sleep(2 * time.Second)
	if d.verifyReaderSelected() {
		return nil
	}
	d.sleep(shortProbeTimeout)
	if d.verifyReaderSelected() {
		return nil
	}
	return fmt.Errorf("%w: details panel never confirmed the selection for %q", ErrReaderNotSelected, query)
}

// awaitMatchingOption polls the dropdown until an option whose title or text
// contains the query appears, or the retry budget runs out.
func (d *Driver) awaitMatchingOption(query string) element {
	want := strings.ToLower(strings.TrimSpace(query))
	for attempt := 0; attempt < matchPollTries; attempt++ {
		options := d.page.All(dropdownOpenSelector + " [role='option']")
		if len(options) == 0 {
			for _, opt := range d.page.All("[role='option']") {
				if opt.Visible(100 * time.Millisecond) {
					options = append(options, opt)
				}
			}
		}
		for _, opt := range options {
			combined := strings.ToLower(opt.Attr("title") + " " + opt.Text())
			if want != "" && strings.Contains(combined, want) {
				return opt
			}
		}
		// Still the stale generic list; wait for the filtered swap.
		d.sleep(matchPollPause)
	}
	return nil
}

// verifyReaderSelected reports whether a reader is actually selected:
// the "Select a reader" warning must be absent AND the details panel must be
// present with a recognizable field label or a non-trivial row count.
func (d *Driver) verifyReaderSelected() bool {
	if warn, ok := d.page.Find(Strategy{Kind: ByText, Pattern: "Select a reader"}, quickProbeTimeout); ok && warn.Visible(quickProbeTimeout) {
		return false
	}

	if card, ok := d.page.Find(Strategy{Kind: ByCSS, Pattern: ".ant-card:has(.ant-descriptions)"}, shortProbeTimeout); ok {
		if _, ok := card.Find("text=/Card barcode/i", quickProbeTimeout); ok {
			return true
		}
		if _, ok := card.Find("text=/First Name/i", quickProbeTimeout); ok {
			return true
		}
	}

	if title, ok := d.page.Find(Strategy{Kind: ByCSS, Pattern: ".ant-card-head-title h4"}, shortProbeTimeout); ok {
		if len(strings.TrimSpace(title.Text())) > 2 {
			return true
		}
	}

	if table, ok := d.page.Find(Strategy{Kind: ByCSS, Pattern: ".ant-descriptions table"}, shortProbeTimeout); ok {
		if len(table.All("tbody tr")) >= 3 {
			return true
		}
	}
	return false
}
