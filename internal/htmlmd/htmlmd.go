// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package htmlmd converts the HTML export of a Google Doc to Markdown in
// process. It is the converter of last resort on hosts without pandoc:
// Docs export their formatting as CSS classes, so the export is rewritten
// into plain semantic HTML before conversion.
package htmlmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
	"github.com/phuslu/log"

	"github.com/mudcube/gdoc-to-md/internal/convert"
)

// Converter turns Drive HTML exports into Markdown. It is safe for
// concurrent use.
type Converter struct {
	logger *log.Logger
}

// New returns a Converter.
func New(logger *log.Logger) *Converter {
	return &Converter{logger: logger}
}

// Name identifies the converter in logs.
func (c *Converter) Name() string { return "html-to-markdown" }

// Probe always succeeds; the converter has no external dependency.
func (c *Converter) Probe(context.Context) (string, error) {
	return "html-to-markdown (built in)", nil
}

// InputFormat asks Docs for an HTML export.
func (c *Converter) InputFormat() convert.Format { return convert.HTML }

// Convert reads the HTML at htmlPath and writes Markdown to mdPath.
func (c *Converter) Convert(ctx context.Context, htmlPath, mdPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.Open(htmlPath)
	if err != nil {
		return fmt.Errorf("opening html export: %w", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return fmt.Errorf("parsing html export: %w", err)
	}
	clean(doc)

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	html, err := root.Html()
	if err != nil {
		return fmt.Errorf("serializing html export: %w", err)
	}

	out, err := newMarkdown().ConvertString(html)
	if err != nil {
		return fmt.Errorf("converting html to markdown: %w", err)
	}
	out = strings.TrimSpace(out)
	if out != "" {
		out += "\n"
	}
	c.logger.Debug().Str("input", htmlPath).Int("html_bytes", len(html)).Int("markdown_bytes", len(out)).Msg("converted html export")

	if err := os.WriteFile(mdPath, []byte(out), 0o600); err != nil {
		return fmt.Errorf("writing markdown: %w", err)
	}
	return nil
}

// newMarkdown builds a fresh converter per document; converters carry
// rule state.
func newMarkdown() *md.Converter {
	conv := md.NewConverter("", true, &md.Options{
		HeadingStyle:     "atx",
		BulletListMarker: "-",
		CodeBlockStyle:   "fenced",
		EmDelimiter:      "*",
		StrongDelimiter:  "**",
	})
	conv.Use(plugin.GitHubFlavored())
	return conv
}

// textStyle is the inline formatting a CSS class applies.
type textStyle struct {
	bold, italic, strike, mono bool
}

func (s textStyle) any() bool { return s.bold || s.italic || s.strike || s.mono }

var classRule = regexp.MustCompile(`\.([A-Za-z0-9_-]+)\{([^}]*)\}`)

// parseStyles extracts single-class rules from the export's stylesheet.
func parseStyles(css string) map[string]textStyle {
	styles := map[string]textStyle{}
	for _, m := range classRule.FindAllStringSubmatch(css, -1) {
		var st textStyle
		for _, decl := range strings.Split(m[2], ";") {
			prop, val, ok := strings.Cut(decl, ":")
			if !ok {
				continue
			}
			val = strings.ToLower(strings.TrimSpace(val))
			switch strings.TrimSpace(prop) {
			case "font-weight":
				st.bold = val == "bold" || val == "700" || val == "800" || val == "900"
			case "font-style":
				st.italic = val == "italic"
			case "text-decoration":
				st.strike = strings.Contains(val, "line-through")
			case "font-family":
				st.mono = isMonospace(val)
			}
		}
		if st.any() {
			styles[m[1]] = st
		}
	}
	return styles
}

func isMonospace(family string) bool {
	for _, f := range []string{"courier", "consolas", "mono", "source code pro", "inconsolata"} {
		if strings.Contains(family, f) {
			return true
		}
	}
	return false
}

// clean rewrites a Docs export into semantic HTML: class-based formatting
// becomes inline tags, the title paragraph becomes a heading, Google
// redirect links are unwrapped, and comments are dropped.
func clean(doc *goquery.Document) {
	styles := parseStyles(doc.Find("style").Text())
	doc.Find("style, script, meta, title").Remove()

	// Comment references, then the comment bodies at the end.
	doc.Find(`a[id^="cmnt_ref"]`).Each(func(_ int, s *goquery.Selection) {
		if sup := s.Closest("sup"); sup.Length() > 0 {
			sup.Remove()
			return
		}
		s.Remove()
	})
	doc.Find(`a[id^="cmnt"]`).Each(func(_ int, s *goquery.Selection) {
		if div := s.Closest("div"); div.Length() > 0 {
			div.Remove()
			return
		}
		s.Closest("p").Remove()
	})

	doc.Find("p.title").Each(func(_ int, s *goquery.Selection) {
		inner, err := s.Html()
		if err != nil {
			return
		}
		s.ReplaceWithHtml("<h1>" + inner + "</h1>")
	})

	doc.Find("span[class]").Each(func(_ int, s *goquery.Selection) {
		if strings.TrimSpace(s.Text()) == "" {
			return
		}
		var st textStyle
		for _, class := range strings.Fields(s.AttrOr("class", "")) {
			cs := styles[class]
			st.bold = st.bold || cs.bold
			st.italic = st.italic || cs.italic
			st.strike = st.strike || cs.strike
			st.mono = st.mono || cs.mono
		}
		if s.Closest("h1, h2, h3, h4, h5, h6").Length() > 0 {
			st.bold = false
		}
		if st.mono {
			s.WrapInnerHtml("<code></code>")
		}
		if st.strike {
			s.WrapInnerHtml("<del></del>")
		}
		if st.italic {
			s.WrapInnerHtml("<em></em>")
		}
		if st.bold {
			s.WrapInnerHtml("<strong></strong>")
		}
	})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		s.SetAttr("href", unwrapRedirect(href))
	})
}

// unwrapRedirect returns the target of a https://www.google.com/url?q=...
// redirect, or href unchanged.
func unwrapRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil || u.Path != "/url" {
		return href
	}
	if u.Host != "www.google.com" && u.Host != "google.com" {
		return href
	}
	if q := u.Query().Get("q"); q != "" {
		return q
	}
	return href
}
