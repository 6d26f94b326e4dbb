package graph

import (
	"fmt"

	"github.com/hanpama/membergraph/internal/store"
)

// input reads coerced argument values. The executor has already checked
// types and required fields, so a present value always has the declared Go
// type.
type input map[string]any

func (in input) object(name string) (input, error) {
	m, ok := in[name].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("argument %s is %T, want an input object", name, in[name])
	}
	return input(m), nil
}

func (in input) id(name string) string {
	s, _ := in[name].(string)
	return s
}

func (in input) str(name string) (string, bool) {
	v, ok := in[name].(string)
	return v, ok
}

func (in input) float(name string) (float64, bool) {
	v, ok := in[name].(float64)
	return v, ok
}

func (in input) integer(name string) (int, bool) {
	v, ok := in[name].(int)
	return v, ok
}

func (in input) boolean(name string) (bool, bool) {
	v, ok := in[name].(bool)
	return v, ok
}

func newUser(id string, dto input) store.User {
	u := store.User{ID: id}
	u.Name, _ = dto.str("name")
	u.Balance, _ = dto.float("balance")
	return u
}

func newPost(id string, dto input) store.Post {
	p := store.Post{ID: id, AuthorID: dto.id("authorId")}
	p.Title, _ = dto.str("title")
	p.Content, _ = dto.str("content")
	return p
}

func newProfile(id string, dto input) store.Profile {
	p := store.Profile{ID: id, UserID: dto.id("userId"), MemberTypeID: dto.id("memberTypeId")}
	p.IsMale, _ = dto.boolean("isMale")
	p.YearOfBirth, _ = dto.integer("yearOfBirth")
	return p
}

// The change* functions apply only the fields present in dto. An explicit
// null leaves the stored value alone.

func changeUser(dto input) func(*store.User) {
	return func(u *store.User) {
		if v, ok := dto.str("name"); ok {
			u.Name = v
		}
		if v, ok := dto.float("balance"); ok {
			u.Balance = v
		}
	}
}

func changePost(dto input) func(*store.Post) {
	return func(p *store.Post) {
		if v, ok := dto.str("title"); ok {
			p.Title = v
		}
		if v, ok := dto.str("content"); ok {
			p.Content = v
		}
	}
}

func changeProfile(dto input) func(*store.Profile) {
	return func(p *store.Profile) {
		if v, ok := dto.boolean("isMale"); ok {
			p.IsMale = v
		}
		if v, ok := dto.integer("yearOfBirth"); ok {
			p.YearOfBirth = v
		}
		if v, ok := dto.str("memberTypeId"); ok {
			p.MemberTypeID = v
		}
	}
}
