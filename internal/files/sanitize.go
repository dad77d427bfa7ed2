package files

import (
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	maxNameBytes = 255
	maxExtBytes  = 32
)

// unsafeNameChars are dropped from filenames besides control and
// non-printable runes.
const unsafeNameChars = "<>:\"|?*`$;&"

// SanitizeFilename turns a client-supplied filename into one that is
// safe to display and to offer back in Content-Disposition. Directory
// components are stripped, whitespace runs become "_" and leading or
// trailing dots and underscores are trimmed. It returns "" when nothing
// usable is left.
func SanitizeFilename(raw string) string {
	name := norm.NFC.String(raw)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	var b strings.Builder
	b.Grow(len(name))
	pendingSpace := false
	for _, r := range name {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = true
			continue
		case r == utf8.RuneError, !unicode.IsGraphic(r), strings.ContainsRune(unsafeNameChars, r):
			continue
		}
		if pendingSpace {
			b.WriteByte('_')
			pendingSpace = false
		}
		b.WriteRune(r)
	}

	out := strings.Trim(b.String(), "._")
	if len(out) > maxNameBytes {
		ext := storedExt(out)
		base := truncateUTF8(strings.TrimSuffix(out, ext), maxNameBytes-len(ext))
		out = strings.TrimRight(base, "._") + ext
	}
	return out
}

// storedExt returns the extension carried over to the stored name.
// Overlong extensions are dropped.
func storedExt(name string) string {
	ext := filepath.Ext(name)
	if ext == "." || len(ext) > maxExtBytes || ext == name {
		return ""
	}
	return ext
}

func truncateUTF8(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
