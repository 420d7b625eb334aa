package memory

import (
	"time"

	"github.com/roach88/lazysync/internal/entity"
	"github.com/roach88/lazysync/internal/serialize"
)

// Team is a group of users.
type Team struct {
	entity.Base
	Name        string
	Description string
	Members     any
}

// User belongs to at most one team and writes posts.
type User struct {
	entity.Base
	Name   string
	Email  string
	Secret string
	Team   any
	Joined time.Time
	Posts  any
}

// Post is written by one user and may mention others.
type Post struct {
	entity.Base
	Title     string
	Body      string
	Author    any
	Mentions  any
	Published time.Time
}

var (
	TeamType = entity.NewType("Team", func() entity.Entity { return &Team{} },
		entity.FieldOf("Name", func(t *Team) string { return t.Name }, func(t *Team, v string) { t.Name = v }),
		entity.FieldOf("Description", func(t *Team) string { return t.Description }, func(t *Team, v string) { t.Description = v }),
		entity.FieldOf("Members", func(t *Team) any { return t.Members }, func(t *Team, v any) { t.Members = v }),
	)

	UserType = entity.NewType("User", func() entity.Entity { return &User{} },
		entity.FieldOf("Name", func(u *User) string { return u.Name }, func(u *User, v string) { u.Name = v }),
		entity.FieldOf("Email", func(u *User) string { return u.Email }, func(u *User, v string) { u.Email = v }),
		entity.FieldOf("Secret", func(u *User) string { return u.Secret }, func(u *User, v string) { u.Secret = v }),
		entity.FieldOf("Team", func(u *User) any { return u.Team }, func(u *User, v any) { u.Team = v }),
		entity.FieldOf("Joined", func(u *User) time.Time { return u.Joined }, func(u *User, v time.Time) { u.Joined = v }),
		entity.FieldOf("Posts", func(u *User) any { return u.Posts }, func(u *User, v any) { u.Posts = v }),
	)

	PostType = entity.NewType("Post", func() entity.Entity { return &Post{} },
		entity.FieldOf("Title", func(p *Post) string { return p.Title }, func(p *Post, v string) { p.Title = v }),
		entity.FieldOf("Body", func(p *Post) string { return p.Body }, func(p *Post, v string) { p.Body = v }),
		entity.FieldOf("Author", func(p *Post) any { return p.Author }, func(p *Post, v any) { p.Author = v }),
		entity.FieldOf("Mentions", func(p *Post) any { return p.Mentions }, func(p *Post, v any) { p.Mentions = v }),
		entity.FieldOf("Published", func(p *Post) time.Time { return p.Published }, func(p *Post, v time.Time) { p.Published = v }),
	)
)

// Types lists the entity types the provider serves.
func Types() []*entity.Type {
	return []*entity.Type{TeamType, UserType, PostType}
}

func (t *Team) EntityType() *entity.Type { return TeamType }

func (t *Team) EntityName() string { return t.Name }

func (t *Team) EntityDescription() string { return t.Description }

func (u *User) EntityType() *entity.Type { return UserType }

func (u *User) EntityName() string { return u.Name }

// SerializeRules hides credentials from display output and reduces
// references to ids for registry output.
func (u *User) SerializeRules(p serialize.Purpose) *serialize.RuleSet {
	switch p {
	case serialize.PurposeDisplay:
		return serialize.NewRuleSet(serialize.Remove("Secret", serialize.RemoveFrom("User")))
	case serialize.PurposeRegistry:
		return serialize.NewRuleSet(
			serialize.Replace("Team", serialize.ReplaceIn("User"), serialize.Rename("TeamId")),
			serialize.Remove("Posts", serialize.RemoveFrom("User")),
		)
	}
	return nil
}

func (p *Post) EntityType() *entity.Type { return PostType }

func (p *Post) EntityName() string { return p.Title }
