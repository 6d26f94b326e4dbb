// Package validation holds the checks that run on a parsed document before
// any execution state exists. Rules never touch resolvers or the store.
package validation

import (
	"github.com/hanpama/membergraph/internal/gqlerrors"
	"github.com/hanpama/membergraph/internal/language"
)

// Rule inspects a document and reports violations in document order.
type Rule func(doc *language.QueryDocument) gqlerrors.ErrorList

// Validate runs rules in order and concatenates their errors.
func Validate(doc *language.QueryDocument, rules ...Rule) gqlerrors.ErrorList {
	var errs gqlerrors.ErrorList
	for _, rule := range rules {
		errs = append(errs, rule(doc)...)
	}
	return errs
}
