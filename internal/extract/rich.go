package extract

import (
	"fmt"

	"github.com/lu4p/cat"
)

// extractRich reads RTF and ODT documents, which carry no page structure, as one page.
func extractRich(content []byte) ([]Page, error) {
	text, err := cat.FromBytes(content)
	if err != nil {
		return nil, fmt.Errorf("extract document text: %w", err)
	}
	return []Page{{Text: text}}, nil
}
