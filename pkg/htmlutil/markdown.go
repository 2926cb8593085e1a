package htmlutil

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

var blankLines = regexp.MustCompile(`\n{3,}`)

func newConverter() *md.Converter {
	converter := md.NewConverter("", true, &md.Options{
		HeadingStyle:     "atx",
		BulletListMarker: "-",
		StrongDelimiter:  "**",
	})
	converter.Remove("script", "style")
	return converter
}

// Markdown converts an html fragment into markdown with ATX headings and "-"
// bullets, runs of blank lines are collapsed into one.
func Markdown(fragment string) (string, error) {
	if strings.TrimSpace(fragment) == "" {
		return "", nil
	}
	out, err := newConverter().ConvertString(fragment)
	if err != nil {
		return "", err
	}
	out = blankLines.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out), nil
}
