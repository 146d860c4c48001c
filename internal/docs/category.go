package docs

import "errors"

// ErrUnknownCategory is returned when a document title is outside the closed
// set of recognized regulatory categories and therefore has no archive
// destination.
var ErrUnknownCategory = errors.New("unrecognized document category")

// Category identifies one of the recognized regulatory-document categories.
// Its value is the name of the title's archive destination.
type Category string

const (
	CategoryDeslindeLegal     Category = "deslindeLegal"
	CategoryPoliticPrivacy    Category = "politicPrivacy"
	CategoryTermsAndCondition Category = "termsAndCondition"
)

// categoryByTitle maps the recognized document titles to their archive
// destinations. Any other title is rejected at the boundary.
var categoryByTitle = map[string]Category{
	"Deslinde legal":         CategoryDeslindeLegal,
	"Política de privacidad": CategoryPoliticPrivacy,
	"Términos y condiciones": CategoryTermsAndCondition,
}

// Categories lists every archive destination in a stable order.
var Categories = []Category{
	CategoryDeslindeLegal,
	CategoryPoliticPrivacy,
	CategoryTermsAndCondition,
}

// CategoryForTitle resolves a title to its archive destination.
func CategoryForTitle(title string) (Category, error) {
	c, ok := categoryByTitle[title]
	if !ok {
		return "", ErrUnknownCategory
	}
	return c, nil
}

// ParseCategory resolves an archive selector string (e.g. from a filter query).
func ParseCategory(s string) (Category, bool) {
	switch Category(s) {
	case CategoryDeslindeLegal, CategoryPoliticPrivacy, CategoryTermsAndCondition:
		return Category(s), true
	}
	return "", false
}
