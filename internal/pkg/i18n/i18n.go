// Package i18n renders issue titles and texts in the supported languages.
package i18n

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

const (
	msgTitle     = "Approximate geometry of %s"
	msgDeviation = "%s deviation of %dm"
)

var supported = []language.Tag{language.English, language.French}

// Catalog implements ports.MessageFormatter on top of x/text message catalogs.
type Catalog struct {
	cat     *catalog.Builder
	matcher language.Matcher
}

// New returns a catalog with the English and French messages loaded.
func New() *Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	must(b.SetString(language.English, msgTitle, "Approximate geometry of %s"))
	must(b.SetString(language.French, msgTitle, "Géométrie approximative de %s"))
	must(b.SetString(language.English, msgDeviation, "%s deviation of %dm"))
	must(b.SetString(language.French, msgDeviation, "%s déviation de %dm"))

	return &Catalog{cat: b, matcher: language.NewMatcher(supported)}
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// Languages returns the supported language tags.
func Languages() []string {
	out := make([]string, len(supported))
	for i, t := range supported {
		out[i] = t.String()
	}
	return out
}

// Resolve maps an Accept-Language style string to a supported tag.
// Unparseable input resolves to English.
func (c *Catalog) Resolve(lang string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(lang)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	_, idx, conf := c.matcher.Match(tags...)
	if conf == language.No {
		return language.English
	}
	return supported[idx]
}

func (c *Catalog) printer(lang string) *message.Printer {
	return message.NewPrinter(c.Resolve(lang), message.Catalog(c.cat))
}

// Title renders the class title for a tag key, e.g. "railway".
func (c *Catalog) Title(lang, key string) string {
	return c.printer(lang).Sprintf(msgTitle, key)
}

// Deviation renders the issue text for a tag value and a discard score in
// metres. The score is quoted whole, rounded to the nearest metre.
func (c *Catalog) Deviation(lang, value string, meters float64) string {
	return c.printer(lang).Sprintf(msgDeviation, value, int(math.Round(meters)))
}
