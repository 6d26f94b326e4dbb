// Package store is the persistence boundary of the member graph. It exposes
// batched and unbatched CRUD primitives per entity and knows nothing about
// GraphQL.
package store

// Relation fields usable with FindMany and FindManyBy.
const (
	FieldAuthorID     = "authorId"
	FieldUserID       = "userId"
	FieldMemberTypeID = "memberTypeId"
)

// Member type ids.
const (
	MemberTypeBasic    = "BASIC"
	MemberTypeBusiness = "BUSINESS"
)

// Entity is a record addressable by key with string-valued relation fields.
type Entity interface {
	Key() string
	Attr(field string) (string, bool)
}

// User is a member of the service.
type User struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Balance float64 `json:"balance"`
}

func (u User) Key() string                { return u.ID }
func (u User) Attr(string) (string, bool) { return "", false }

// Post is authored by exactly one user.
type Post struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	AuthorID string `json:"authorId"`
}

func (p Post) Key() string { return p.ID }

func (p Post) Attr(field string) (string, bool) {
	if field == FieldAuthorID {
		return p.AuthorID, true
	}
	return "", false
}

// Profile belongs to one user and references a member type.
type Profile struct {
	ID           string `json:"id"`
	IsMale       bool   `json:"isMale"`
	YearOfBirth  int    `json:"yearOfBirth"`
	UserID       string `json:"userId"`
	MemberTypeID string `json:"memberTypeId"`
}

func (p Profile) Key() string { return p.ID }

func (p Profile) Attr(field string) (string, bool) {
	switch field {
	case FieldUserID:
		return p.UserID, true
	case FieldMemberTypeID:
		return p.MemberTypeID, true
	}
	return "", false
}

// MemberType is a membership tier.
type MemberType struct {
	ID                 string  `json:"id"`
	Discount           float64 `json:"discount"`
	PostsLimitPerMonth int     `json:"postsLimitPerMonth"`
}

func (m MemberType) Key() string                { return m.ID }
func (m MemberType) Attr(string) (string, bool) { return "", false }

// Subscription is the edge "subscriber follows author".
type Subscription struct {
	SubscriberID string `json:"subscriberId"`
	AuthorID     string `json:"authorId"`
}

// DefaultMemberTypes are the tiers every store starts with.
func DefaultMemberTypes() []MemberType {
	return []MemberType{
		{ID: MemberTypeBasic, Discount: 2.3, PostsLimitPerMonth: 20},
		{ID: MemberTypeBusiness, Discount: 7.7, PostsLimitPerMonth: 100},
	}
}
