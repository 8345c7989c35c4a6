// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/mudcube/gdoc-to-md/pkg/types"
)

// splitFrontmatter parses the leading YAML block of a converted document.
func splitFrontmatter(t *testing.T, doc []byte) (map[string]string, []byte) {
	t.Helper()
	rest, ok := bytes.CutPrefix(doc, []byte("---\n"))
	require.True(t, ok, "document must open with ---")
	block, body, ok := bytes.Cut(rest, []byte("\n---\n"))
	require.True(t, ok, "frontmatter must be closed with ---")

	meta := map[string]string{}
	require.NoError(t, yaml.Unmarshal(block, &meta))
	return meta, bytes.TrimPrefix(body, []byte("\n"))
}

func TestRenderFrontmatter_RoundTripsAnyTitle(t *testing.T) {
	titles := []string{
		"Plain title",
		`She said "hello"`,
		"Key: value # not a comment",
		`back\slash and 'single' quotes`,
		"- leading dash",
		"line one\nline two",
		"émoji 🚀 and ünïcode",
		"true",
		"",
		strings.Repeat("long title words ", 20),
	}

	for _, title := range titles {
		t.Run(title, func(t *testing.T) {
			fm := types.Frontmatter{
				Title:       title,
				SourceDocID: "id-1",
				SourceURL:   "https://docs.google.com/document/d/id-1/edit",
				ConvertedOn: testClock,
			}
			out, err := renderFrontmatter(fm)
			require.NoError(t, err)

			meta, body := splitFrontmatter(t, out)
			assert.Equal(t, title, meta["title"])
			assert.Equal(t, "id-1", meta["source_doc_id"])
			assert.Equal(t, "2024-03-09 14:05:06", meta["converted_on"])
			assert.Empty(t, body)

			lines := strings.Split(strings.TrimSuffix(string(out), "\n"), "\n")
			require.Len(t, lines, 6, "one line per field plus delimiters")
			for _, line := range lines[1:5] {
				_, value, ok := strings.Cut(line, ": ")
				require.True(t, ok, line)
				assert.True(t, strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`), "value not double-quoted: %s", line)
			}
		})
	}
}

func TestRenderFrontmatter_FieldOrder(t *testing.T) {
	out, err := renderFrontmatter(types.Frontmatter{Title: "T", SourceDocID: "i", SourceURL: "u", ConvertedOn: testClock, DocxPath: "intermediates/T.docx"})
	require.NoError(t, err)

	var keys []string
	for _, line := range strings.Split(string(out), "\n") {
		if k, _, ok := strings.Cut(line, ":"); ok {
			keys = append(keys, k)
		}
	}
	assert.Equal(t, []string{"title", "source_doc_id", "source_url", "converted_on", "docx_path"}, keys)
}

func TestNewFrontmatter_NormalizesTitle(t *testing.T) {
	// "Café" with a combining acute accent, as macOS filenames store it.
	src := types.SourceFile{AbsPath: "/tmp/Cafe\u0301.gdoc", Kind: types.KindDoc, DriveID: "c1"}

	fm := NewFrontmatter(src, testClock)

	assert.Equal(t, "Caf\u00e9", fm.Title)
	assert.Equal(t, "https://docs.google.com/document/d/c1/edit", fm.SourceURL)
	assert.Equal(t, testClock, fm.ConvertedOn)
}

func TestNewFrontmatter_InvalidUTF8Title(t *testing.T) {
	tests := []struct {
		name string
		file string
		want string
	}{
		{name: "latin-1 byte", file: "Caf\xe9 notes", want: "Café notes"},
		{name: "windows-1252 quotes", file: "\x93quoted\x94", want: "“quoted”"},
		{name: "valid runes kept", file: "résumé \xe9t\xe9", want: "résumé été"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := types.SourceFile{AbsPath: "/tmp/" + tt.file + ".gdoc", Kind: types.KindDoc, DriveID: "x1"}
			fm := NewFrontmatter(src, testClock)
			assert.Equal(t, tt.want, fm.Title)

			out, err := renderFrontmatter(fm)
			require.NoError(t, err)
			meta, _ := splitFrontmatter(t, out)
			assert.Equal(t, tt.want, meta["title"])
		})
	}
}

func TestRenderFrontmatter_InvalidUTF8Value(t *testing.T) {
	out, err := renderFrontmatter(types.Frontmatter{Title: "bad \xff byte", SourceDocID: "i", SourceURL: "u", ConvertedOn: testClock})
	require.NoError(t, err)

	meta, _ := splitFrontmatter(t, out)
	assert.Equal(t, "bad � byte", meta["title"])
}

func TestRenderFrontmatter_AstralCharactersLiteral(t *testing.T) {
	titles := []string{
		"emoji 🎉",
		`slash \🎉 party`,
		`literal \U0001F389 text`,
		`two \\U0001F389 slashes`,
	}
	for _, title := range titles {
		t.Run(title, func(t *testing.T) {
			out, err := renderFrontmatter(types.Frontmatter{Title: title, SourceDocID: "i", SourceURL: "u", ConvertedOn: testClock})
			require.NoError(t, err)

			meta, _ := splitFrontmatter(t, out)
			assert.Equal(t, title, meta["title"])
		})
	}

	out, err := renderFrontmatter(types.Frontmatter{Title: "emoji 🎉", SourceDocID: "i", SourceURL: "u", ConvertedOn: testClock})
	require.NoError(t, err)
	assert.Contains(t, string(out), `title: "emoji 🎉"`)
}
