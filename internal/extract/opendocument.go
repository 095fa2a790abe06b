package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"strings"
)

const odfContentPath = "content.xml"

var (
	// odfText matches innermost text:p, text:h and text:span elements.
	odfText = regexp.MustCompile(`<text:(?:p|h|span)[^>]*>([^<]*)</text:(?:p|h|span)>`)
	// Slides and sheets both open with a start tag carrying attributes.
	odpPageStart = regexp.MustCompile(`<draw:page[\s>]`)
	odsPageStart = regexp.MustCompile(`<table:table[\s>]`)
)

func extractODP(content []byte) ([]Page, error) {
	return extractODF(content, "ODP", odpPageStart)
}

func extractODS(content []byte) ([]Page, error) {
	return extractODF(content, "ODS", odsPageStart)
}

// extractODF reads content.xml and returns one page per element matched by pageStart
// (slides for presentations, tables for spreadsheets), numbered from 1.
func extractODF(content []byte, kind string, pageStart *regexp.Regexp) ([]Page, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract %s: not a zip: %w", kind, err)
	}
	data, err := readZipEntry(zr, odfContentPath)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", kind, err)
	}
	if data == nil {
		return nil, fmt.Errorf("extract %s: %s not found", kind, odfContentPath)
	}
	s := string(data)
	starts := pageStart.FindAllStringIndex(s, -1)
	if len(starts) == 0 {
		return []Page{{Text: joinMatches(odfText.FindAllStringSubmatch(s, -1))}}, nil
	}
	pages := make([]Page, 0, len(starts))
	for i, loc := range starts {
		end := len(s)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		text := joinMatches(odfText.FindAllStringSubmatch(s[loc[0]:end], -1))
		pages = append(pages, Page{Number: i + 1, Text: strings.TrimSpace(text)})
	}
	return pages, nil
}
