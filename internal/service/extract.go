package service

import (
	"strings"

	"github.com/finners68/process-insurance/internal/domain"
)

// KeyValues rebuilds form fields from a KEY_VALUE_SET block graph. Word order
// follows the relationship lists; a repeated key keeps the last value.
func KeyValues(blocks []domain.Block) map[string]string {
	index := make(map[string]*domain.Block, len(blocks))
	for i := range blocks {
		index[blocks[i].ID] = &blocks[i]
	}

	fields := make(map[string]string)
	for i := range blocks {
		block := &blocks[i]
		if block.Type != domain.BlockTypeKeyValueSet || !block.HasEntityType(domain.EntityTypeKey) {
			continue
		}

		var key, value string
		for _, rel := range block.Relationships {
			switch rel.Type {
			case domain.RelationshipChild:
				key = wordText(rel.IDs, index)
			case domain.RelationshipValue:
				for _, id := range rel.IDs {
					valueBlock, ok := index[id]
					if !ok {
						continue
					}
					for _, child := range valueBlock.Relationships {
						if child.Type == domain.RelationshipChild {
							value = wordText(child.IDs, index)
						}
					}
				}
			}
		}

		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if key != "" && value != "" {
			fields[key] = value
		}
	}

	return fields
}

func wordText(ids []string, index map[string]*domain.Block) string {
	words := make([]string, 0, len(ids))
	for _, id := range ids {
		b, ok := index[id]
		if !ok || b.Type != domain.BlockTypeWord {
			continue
		}
		words = append(words, b.Text)
	}
	return strings.Join(words, " ")
}

// LineText joins the text of every LINE block with newlines.
func LineText(blocks []domain.Block) string {
	var lines []string
	for _, b := range blocks {
		if b.Type == domain.BlockTypeLine {
			lines = append(lines, b.Text)
		}
	}
	return strings.Join(lines, "\n")
}

// CombinePages separates per-page text with a blank line.
func CombinePages(pages []string) string {
	return strings.Join(pages, "\n\n")
}
