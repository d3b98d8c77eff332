package rpa

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/gobwas/glob"
)

// Endpoint patterns of the remote interface service. The true outcome of an
// operation is read from these calls, not from the UI.
var (
	searchEndpointGlob  = glob.MustCompile("*/issuance/action/reader/profile/list*")
	profileEndpointGlob = glob.MustCompile("*/issuance/action/reader/profile/*")
	issueEndpointGlob   = glob.MustCompile("*/issuance/action/issue/book/item*")
	returnEndpointGlob  = glob.MustCompile("*/issuance/action/return/book/item*")
)

// parseReaderList extracts reader records from a search response payload.
// The payload is either a bare list or an object wrapping the list under one
// of a few known keys.
func parseReaderList(body []byte) []ReaderRecord {
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}

	var entries []any
	switch v := payload.(type) {
	case []any:
		entries = v
	case map[string]any:
		for _, key := range []string{"result", "results", "data", "items", "list"} {
			if list, ok := v[key].([]any); ok {
				entries = list
				break
			}
		}
	}

	records := make([]ReaderRecord, 0, len(entries))
	for _, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		records = append(records, readerFromEntry(entry))
	}
	return records
}

func readerFromEntry(entry map[string]any) ReaderRecord {
	rec := ReaderRecord{Raw: entry, ExternalID: readerIDFromEntry(entry)}

	// Field lists come in two shapes depending on the endpoint version.
	for _, key := range []string{"fields", "columnValueList"} {
		list, ok := entry[key].([]any)
		if !ok {
			continue
		}
		for _, f := range list {
			fm, ok := f.(map[string]any)
			if !ok {
				continue
			}
			code, _ := firstString(fm, "code", "columnCode")
			value, _ := firstString(fm, "value", "columnValue")
			if code != "" {
				rec.Fields = append(rec.Fields, ReaderField{Code: code, Value: value})
			}
		}
	}

	// Flat payloads carry the well-known codes as top-level keys.
	if len(rec.Fields) == 0 {
		for _, code := range []string{FieldFirstName, FieldLastName, FieldCardBarcode, FieldEmail} {
			if v, ok := firstString(entry, code); ok {
				rec.Fields = append(rec.Fields, ReaderField{Code: code, Value: v})
			}
		}
	}
	return rec
}

// readerIDFromEntry pulls the opaque identifier out of a payload entry,
// trying the known key spellings.
func readerIDFromEntry(entry map[string]any) int64 {
	for _, key := range []string{"parentId", "readerId", "id", "reader_id"} {
		switch v := entry[key].(type) {
		case float64:
			if v != 0 {
				return int64(v)
			}
		case string:
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n != 0 {
				return n
			}
		}
	}
	return 0
}

// readerIDFromRequest extracts a readerId from a profile request's URL query
// or form payload.
func readerIDFromRequest(rawURL, postData string) int64 {
	if u, err := url.Parse(rawURL); err == nil {
		if v := u.Query().Get("readerId"); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				return n
			}
		}
	}

	if postData != "" {
		var m map[string]any
		if err := json.Unmarshal([]byte(postData), &m); err == nil {
			if id := readerIDFromEntry(m); id != 0 {
				return id
			}
		}
		// URL-encoded fallback.
		if i := strings.Index(postData, "readerId="); i >= 0 {
			v := postData[i+len("readerId="):]
			if j := strings.IndexByte(v, '&'); j >= 0 {
				v = v[:j]
			}
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				return n
			}
		}
	}
	return 0
}

func firstString(m map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if v != "" {
				return v, true
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), true
		}
	}
	return "", false
}

// decodeJSONBody unmarshals a response body into a generic map, returning
// nil when the payload is not a JSON object.
func decodeJSONBody(r netResponse) map[string]any {
	body, err := r.Body()
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return nil
	}
	return m
}
