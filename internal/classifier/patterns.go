package classifier

import (
	"regexp"

	"github.com/pawtrawl/pawtrawl/internal/page"
)

// homepagePaths match after lowercasing the URL path.
var homepagePaths = map[string]bool{
	"":            true,
	"/":           true,
	"/index":      true,
	"/index.html": true,
	"/home":       true,
}

// urlPatternGroup ties one page type to the URL substrings that imply it.
// Groups are checked in order; the first match wins.
type urlPatternGroup struct {
	pageType page.PageType
	patterns []*regexp.Regexp
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile("(?i)" + e)
	}
	return out
}

var urlPatternGroups = []urlPatternGroup{
	{page.TypePricing, compileAll(
		`/pric`, `/rate`, `/fee`, `/cost`, `/tariff`,
		`/charge`, `/boarding-price`, `/grooming-price`,
	)},
	{page.TypeContact, compileAll(
		`/contact`, `/location`, `/find-us`, `/directions`,
		`/where`, `/visit`, `/get-in-touch`,
	)},
	{page.TypeAbout, compileAll(
		`/about`, `/our-story`, `/who-we-are`, `/team`,
		`/history`, `/meet-the-team`,
	)},
	{page.TypeServices, compileAll(
		`/service`, `/what-we-do`, `/our-service`, `/treatment`,
		`/grooming`, `/boarding`, `/daycare`,
	)},
	{page.TypeTerms, compileAll(
		`/term`, `/condition`, `/polic`, `/t-and-c`, `/t&c`,
		`/cancellation`, `/booking-term`,
	)},
	{page.TypeFAQ, compileAll(
		`/faq`, `/question`, `/help`, `/info`,
		`/frequently-asked`,
	)},
	{page.TypeBooking, compileAll(
		`/book`, `/reserv`, `/appointment`, `/availability`,
		`/schedule`,
	)},
	{page.TypeGallery, compileAll(
		`/gallery`, `/photo`, `/image`, `/picture`,
		`/virtual-tour`,
	)},
	{page.TypeBlog, compileAll(
		`/blog`, `/news`, `/article`, `/post`,
		`/update`, `/latest`,
	)},
}

// pricingSignals match price amounts, rate phrasing, and the size-based
// or per-service pricing language common on pet care sites.
var pricingSignals = compileAll(
	`£\d+`, `£ \d+`, `\d+\.\d{2}`,
	`per night`, `per day`, `per hour`, `per session`,
	`from £`, `prices from`, `rates from`,
	`price list`, `our prices`, `our rates`,
	`small dog`, `medium dog`, `large dog`,
	`full groom`, `bath and dry`, `nail trim`,
)

// contactSignals match UK phone numbers, email addresses, postcodes and
// opening-hours phrasing.
var contactSignals = compileAll(
	`\b\d{5}\s?\d{6}\b`,
	`\b0\d{2,4}\s?\d{6,7}\b`,
	`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`,
	`[A-Z]{1,2}\d{1,2}\s?\d[A-Z]{2}`,
	`opening hours`, `open mon`, `open daily`,
)

// baseRelevance ranks page types by how likely they are to contain
// extractable business data.
var baseRelevance = map[page.PageType]float64{
	page.TypePricing:  1.0,
	page.TypeServices: 0.9,
	page.TypeContact:  0.85,
	page.TypeTerms:    0.8,
	page.TypeFAQ:      0.75,
	page.TypeBooking:  0.7,
	page.TypeAbout:    0.5,
	page.TypeHomepage: 0.6,
	page.TypeGallery:  0.1,
	page.TypeBlog:     0.1,
	page.TypeOther:    0.3,
}
