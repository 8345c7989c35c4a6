// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package walk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// errNoID is returned when a placeholder carries no recognisable Drive id.
var errNoID = errors.New("no drive file id in placeholder")

// placeholder is the JSON stored in .gdoc/.gsheet files. Drive for desktop
// writes doc_id; older sync clients wrote resource_id ("document:<id>") and
// a url.
type placeholder struct {
	DocID       string `json:"doc_id"`
	ResourceID  string `json:"resource_id"`
	ResourceID2 string `json:"resourceid"`
	URL         string `json:"url"`
}

// readPlaceholder extracts the Drive id and url from the placeholder at path.
func readPlaceholder(path string) (id, link string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("reading placeholder: %w", err)
	}

	var p placeholder
	if err := json.Unmarshal(data, &p); err != nil {
		return "", "", fmt.Errorf("parsing placeholder: %w", err)
	}

	id = firstNonEmpty(
		strings.TrimSpace(p.DocID),
		stripResourcePrefix(p.ResourceID),
		stripResourcePrefix(p.ResourceID2),
		idFromURL(p.URL),
	)
	if id == "" {
		return "", p.URL, errNoID
	}
	return id, p.URL, nil
}

// stripResourcePrefix turns "document:abc" into "abc".
func stripResourcePrefix(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// idFromURL handles both https://docs.google.com/open?id=<id> and
// https://docs.google.com/document/d/<id>/edit.
func idFromURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if id := u.Query().Get("id"); id != "" {
		return id
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] == "d" {
			return parts[i+1]
		}
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
