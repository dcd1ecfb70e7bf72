package slug

import (
	"strings"
	"unicode/utf8"
)

var transliterator = strings.NewReplacer(
	"ç", "c", "ğ", "g", "ı", "i", "ö", "o", "ş", "s", "ü", "u",
	"á", "a", "à", "a", "â", "a", "ä", "a", "ã", "a", "å", "a",
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"í", "i", "ì", "i", "î", "i", "ï", "i",
	"ó", "o", "ò", "o", "ô", "o", "õ", "o", "ø", "o",
	"ú", "u", "ù", "u", "û", "u",
	"ñ", "n", "ß", "ss", "æ", "ae", "œ", "oe",
)

// Generate lowercases name, transliterates common Latin letters to ASCII and
// joins the remaining alphanumeric runs with single hyphens.
//
//	"Çocuk Ürünleri" → "cocuk-urunleri"
//	"My Photo (1).JPG" → "my-photo-1-jpg"
func Generate(name string) string {
	s := transliterator.Replace(strings.ToLower(strings.TrimSpace(name)))

	var b strings.Builder
	b.Grow(len(s))
	pendingHyphen := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}

// Truncate returns slug cut to at most max bytes without a trailing hyphen.
func Truncate(slug string, max int) string {
	if len(slug) <= max {
		return slug
	}
	slug = slug[:max]
	for !utf8.ValidString(slug) {
		slug = slug[:len(slug)-1]
	}
	return strings.TrimRight(slug, "-")
}
