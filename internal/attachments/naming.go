package attachments

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode"
)

func sanitize(name string) string {
	var out strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '.' || r == '_' || r == '-' {
			out.WriteRune(r)
		}
	}
	return strings.TrimSpace(out.String())
}

// UrlHash is the first 8 hex characters of the md5 of the url.
func UrlHash(rawUrl string) string {
	sum := md5.Sum([]byte(rawUrl))
	return hex.EncodeToString(sum[:])[:8]
}

func urlExt(rawUrl string) string {
	parsed, err := url.Parse(rawUrl)
	if err != nil {
		return ""
	}
	return path.Ext(parsed.Path)
}

// StoredName derives the on-disk filename of an attachment: the sanitized
// suggested name with the url hash appended before the extension. It only
// depends on its inputs, so the same url always maps to the same file and two
// different urls never share one.
func StoredName(rawUrl, suggestedName string) string {
	hash := UrlHash(rawUrl)
	safe := sanitize(suggestedName)
	if safe == "" || safe == "." {
		return "attachment_" + hash + urlExt(rawUrl)
	}

	dot := strings.LastIndex(safe, ".")
	if dot < 0 {
		return safe + "_" + hash
	}
	return safe[:dot] + "_" + hash + "." + safe[dot+1:]
}

// Extension is the lowercased extension of the suggested name, falling back
// to the extension of the url path.
func Extension(rawUrl, suggestedName string) string {
	ext := path.Ext(strings.TrimSpace(suggestedName))
	if ext == "" || ext == "." {
		ext = urlExt(rawUrl)
	}
	return strings.ToLower(ext)
}

func normalizeExtensions(exts []string) map[string]bool {
	out := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out[e] = true
	}
	return out
}

func groupDir(group string) string {
	g := sanitize(group)
	g = strings.ReplaceAll(g, "..", "_")
	if g == "" || g == "." {
		return "_"
	}
	return g
}

var wixUrlRegex = regexp.MustCompile(`^https?://([^./]+)\.usrfiles\.com/ugd/([^/?#]+)`)

// WixFile is what a Wix user file url encodes.
type WixFile struct {
	Uuid string
	Hash string
}

// ParseWixUrl parses `https://<uuid>.usrfiles.com/ugd/<hash>` urls.
func ParseWixUrl(rawUrl string) (WixFile, bool) {
	groups := wixUrlRegex.FindStringSubmatch(strings.TrimSpace(rawUrl))
	if groups == nil {
		return WixFile{}, false
	}
	return WixFile{Uuid: groups[1], Hash: groups[2]}, true
}
