package service

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

const (
	maxStemLen  = 100
	defaultStem = "document"
)

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FilenameStem reduces a client-supplied filename to a safe key prefix. It
// carries no uniqueness guarantee.
func FilenameStem(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	name = strings.TrimSuffix(name, path.Ext(name))
	name = unsafeKeyChars.ReplaceAllString(name, "-")
	name = strings.Trim(name, ".-")
	if len(name) > maxStemLen {
		name = strings.TrimRight(name[:maxStemLen], ".-")
	}
	if name == "" {
		return defaultStem
	}
	return name
}

// StorageKey builds {stem}[-page{N}]-{token}.png; page <= 0 omits the page part.
func StorageKey(stem string, page int, token string) string {
	if page > 0 {
		return fmt.Sprintf("%s-page%d-%s.png", stem, page, token)
	}
	return fmt.Sprintf("%s-%s.png", stem, token)
}
