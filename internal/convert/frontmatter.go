// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.yaml.in/yaml/v3"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"

	"github.com/mudcube/gdoc-to-md/pkg/types"
)

// TimestampLayout is the converted_on format: local time, second precision.
const TimestampLayout = "2006-01-02 15:04:05"

// NewFrontmatter builds the metadata block for a Doc. The title is the
// placeholder name in NFC so names from macOS (NFD) and elsewhere match.
func NewFrontmatter(src types.SourceFile, convertedOn time.Time) types.Frontmatter {
	return types.Frontmatter{
		Title:       norm.NFC.String(validTitle(src.Name())),
		SourceDocID: src.DriveID,
		SourceURL:   src.CanonicalURL(),
		ConvertedOn: convertedOn,
	}
}

// validTitle returns name as valid UTF-8. File names on Linux are raw
// bytes; a byte that does not start a UTF-8 sequence is read as
// Windows-1252, the usual encoding of such legacy names.
func validTitle(name string) string {
	if utf8.ValidString(name) {
		return name
	}
	var b strings.Builder
	for i := 0; i < len(name); {
		r, size := utf8.DecodeRuneInString(name[i:])
		if r == utf8.RuneError && size == 1 {
			r = charmap.Windows1252.DecodeByte(name[i])
		}
		b.WriteRune(r)
		i += size
	}
	return b.String()
}

// astralEscape matches the \UXXXXXXXX escapes the YAML encoder writes for
// characters outside the Basic Multilingual Plane, with the backslashes
// before them.
var astralEscape = regexp.MustCompile(`(\\+)U([0-9A-Fa-f]{8})`)

// unescapeAstral writes printable astral characters (emoji and the like)
// literally. An even run of backslashes is an escaped backslash followed
// by a literal "U", and is left alone.
func unescapeAstral(out []byte) []byte {
	return astralEscape.ReplaceAllFunc(out, func(m []byte) []byte {
		sub := astralEscape.FindSubmatch(m)
		slashes, hex := sub[1], sub[2]
		if len(slashes)%2 == 0 {
			return m
		}
		code, err := strconv.ParseUint(string(hex), 16, 32)
		if err != nil || !utf8.ValidRune(rune(code)) || !strconv.IsPrint(rune(code)) {
			return m
		}
		lit := append([]byte{}, slashes[:len(slashes)-1]...)
		return utf8.AppendRune(lit, rune(code))
	})
}

// renderFrontmatter encodes fm as a YAML block delimited by "---" lines.
// Every value is a double-quoted scalar, so quotes, colons, and newlines in
// a title are escaped rather than dropped.
func renderFrontmatter(fm types.Frontmatter) ([]byte, error) {
	fields := [][2]string{
		{"title", fm.Title},
		{"source_doc_id", fm.SourceDocID},
		{"source_url", fm.SourceURL},
		{"converted_on", fm.ConvertedOn.Format(TimestampLayout)},
	}
	if fm.DocxPath != "" {
		fields = append(fields, [2]string{"docx_path", fm.DocxPath})
	}

	doc := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range fields {
		doc.Content = append(doc.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f[0]},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: strings.ToValidUTF8(f[1], "\uFFFD"), Style: yaml.DoubleQuotedStyle},
		)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encoding frontmatter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding frontmatter: %w", err)
	}
	out := unescapeAstral(buf.Bytes())
	return append(out, "---\n"...), nil
}

// renderDocument prepends the frontmatter to body, separated by a blank
// line. An empty body yields the frontmatter alone.
func renderDocument(fm types.Frontmatter, body []byte) ([]byte, error) {
	out, err := renderFrontmatter(fm)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return out, nil
	}
	out = append(out, '\n')
	return append(out, body...), nil
}
