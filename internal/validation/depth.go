package validation

import (
	"fmt"

	"github.com/hanpama/membergraph/internal/gqlerrors"
	"github.com/hanpama/membergraph/internal/language"
)

// DefaultMaxDepth is used when no limit is configured.
const DefaultMaxDepth = 5

// MaxDepth rejects operations nested deeper than max. Root fields sit at
// depth 0 and every nested selection set adds one; fragment spreads and
// inline fragments are transparent. Each offending field is reported once
// with its response path and traversal stops below it.
func MaxDepth(max int) Rule {
	if max < 1 {
		max = DefaultMaxDepth
	}
	return func(doc *language.QueryDocument) gqlerrors.ErrorList {
		w := &depthWalker{doc: doc, max: max, active: map[string]bool{}}
		for _, op := range doc.Operations {
			w.operation = op.Name
			w.selectionSet(op.SelectionSet, 0, nil)
		}
		return w.errs
	}
}

type depthWalker struct {
	doc       *language.QueryDocument
	max       int
	operation string
	active    map[string]bool // fragments on the current branch
	errs      gqlerrors.ErrorList
}

func (w *depthWalker) selectionSet(set language.SelectionSet, depth int, path []any) {
	for _, sel := range set {
		switch sel := sel.(type) {
		case *language.Field:
			w.field(sel, depth, path)
		case *language.InlineFragment:
			w.selectionSet(sel.SelectionSet, depth, path)
		case *language.FragmentSpread:
			frag := w.doc.Fragments.ForName(sel.Name)
			if frag == nil || w.active[sel.Name] {
				continue
			}
			w.active[sel.Name] = true
			w.selectionSet(frag.SelectionSet, depth, path)
			delete(w.active, sel.Name)
		}
	}
}

func (w *depthWalker) field(f *language.Field, depth int, parent []any) {
	key := f.Alias
	if key == "" {
		key = f.Name
	}
	path := make([]any, len(parent)+1)
	copy(path, parent)
	path[len(parent)] = key

	if depth > w.max {
		w.errs = append(w.errs, w.tooDeep(f, path))
		return
	}
	if len(f.SelectionSet) > 0 {
		w.selectionSet(f.SelectionSet, depth+1, path)
	}
}

func (w *depthWalker) tooDeep(f *language.Field, path []any) *gqlerrors.Error {
	name := w.operation
	if name == "" {
		name = "anonymous"
	}
	err := gqlerrors.New(gqlerrors.ValidationFailed,
		fmt.Sprintf("'%s' exceeds maximum operation depth of %d", name, w.max)).WithPath(path)
	if f.Position != nil {
		err.Locations = []gqlerrors.Location{{Line: f.Position.Line, Column: f.Position.Column}}
	}
	err.Extensions["maxDepth"] = w.max
	return err
}
