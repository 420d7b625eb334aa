package memory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lazysync/internal/deferred"
	"github.com/roach88/lazysync/internal/dispatch"
	"github.com/roach88/lazysync/internal/entity"
	"github.com/roach88/lazysync/internal/registry"
	"github.com/roach88/lazysync/internal/serialize"
)

func openDemo(t *testing.T) *Provider {
	t.Helper()
	p, err := Open(filepath.Join("testdata", "demo.yaml"))
	require.NoError(t, err)
	return p
}

func newDispatcher(t *testing.T, p *Provider, opts ...dispatch.Option) *dispatch.Dispatcher {
	t.Helper()
	reg, err := registry.Open(filepath.Join(t.TempDir(), "memory.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Release(context.Background()) })

	d := dispatch.New(reg, opts...)
	require.NoError(t, d.Register(context.Background(), p))
	return d
}

func TestParseDataset_Errors(t *testing.T) {
	_, err := ParseDataset([]byte("teams: []"))
	assert.ErrorContains(t, err, "name is required")

	_, err = ParseDataset([]byte("name: x\nteams: {"))
	assert.Error(t, err)

	ds, err := ParseDataset([]byte("name: x\nusers:\n  - {name: nobody}\n"))
	require.NoError(t, err)
	_, err = New(ds)
	assert.ErrorContains(t, err, "users[0]")

	ds, err = ParseDataset([]byte("name: x\nteams:\n  - {id: 1}\n  - {id: 1}\n"))
	require.NoError(t, err)
	_, err = New(ds)
	assert.ErrorContains(t, err, "duplicate id 1")

	ds, err = ParseDataset([]byte("name: x\nposts:\n  - {id: 1, published: yesterday}\n"))
	require.NoError(t, err)
	_, err = New(ds)
	assert.ErrorContains(t, err, "unrecognized timestamp")
}

func TestGet_ResolvesReferences(t *testing.T) {
	p := openDemo(t)
	d := newDispatcher(t, p)

	e, err := dispatch.For(d, p, UserType).Get(context.Background(), 10)
	require.NoError(t, err)

	u := e.(*User)
	assert.Equal(t, "Ada", u.Name)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), u.Joined)

	team, ok := u.Team.(*Team)
	require.True(t, ok)
	assert.Equal(t, "Core", team.Name)
	assert.Nil(t, team.Members, "relationships are not expanded for nested fetches")

	posts, ok := u.Posts.([]any)
	require.True(t, ok)
	require.Len(t, posts, 2)
	assert.Equal(t, "Hello", posts[0].(*Post).Title)
	assert.IsType(t, &User{}, posts[0].(*Post).Author)
}

func TestGet_Missing(t *testing.T) {
	p := openDemo(t)
	d := newDispatcher(t, p)

	e, err := dispatch.For(d, p, TeamType).Get(context.Background(), 99)
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestGet_DoNotResolveLeavesPlaceholders(t *testing.T) {
	p := openDemo(t)
	d := newDispatcher(t, p, dispatch.WithPolicy(entity.DoNotResolve))

	e, err := dispatch.For(d, p, PostType).Get(context.Background(), 100)
	require.NoError(t, err)
	post := e.(*Post)
	assert.IsType(t, &deferred.EntityRef{}, post.Author)
	mentions := post.Mentions.([]any)
	require.Len(t, mentions, 2)
	assert.Equal(t, entity.IntID(11), mentions[0].(deferred.Unresolved).LinkID())

	got, err := serialize.Serialize(post, serialize.NewRuleSet(serialize.Remove("Body")))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"Id":        int64(100),
		"Title":     "Hello",
		"Author":    map[string]any{"@type": UserType.URI, "@id": int64(10)},
		"Mentions":  []any{map[string]any{"@type": UserType.URI, "@id": int64(11)}, map[string]any{"@type": UserType.URI, "@id": int64(12)}},
		"Published": "2024-02-01",
	}, got)

	require.NoError(t, d.Queue().ResolveAll(context.Background()))
	assert.Equal(t, "Ada", post.Author.(*User).Name)
	assert.Equal(t, "Cleo", post.Mentions.([]any)[1].(*User).Name)
}

func TestGetList_FilterAndRelationship(t *testing.T) {
	p := openDemo(t)
	d := newDispatcher(t, p)

	teams, err := dispatch.For(d, p, TeamType).Collect(context.Background(), entity.OpGetList)
	require.NoError(t, err)
	require.Len(t, teams, 2)

	members := teams[0].(*Team).Members.([]any)
	require.Len(t, members, 2)
	assert.Equal(t, "Ada", members[0].(*User).Name)
	assert.Equal(t, "Brian", members[1].(*User).Name)

	var names []string
	for e, err := range dispatch.For(d, p, UserType).GetList(context.Background(), map[string]any{"Team": 2}) {
		require.NoError(t, err)
		names = append(names, e.(*User).Name)
	}
	assert.Equal(t, []string{"Cleo"}, names)
}

func TestGetList_BadFilter(t *testing.T) {
	p := openDemo(t)
	d := newDispatcher(t, p)

	_, err := dispatch.For(d, p, TeamType).Collect(context.Background(), entity.OpGetList, "Core")
	assert.ErrorContains(t, err, "filter must be map[string]any")
}

func TestWrites(t *testing.T) {
	p := openDemo(t)
	d := newDispatcher(t, p)
	users := dispatch.For(d, p, UserType)
	ctx := context.Background()

	created, err := users.Create(ctx, &User{Name: "Dee", Team: 2})
	require.NoError(t, err)
	assert.Equal(t, entity.IntID(13), created.EntityID())
	assert.Equal(t, 4, p.Len(UserType))

	_, err = users.Create(ctx, created)
	assert.ErrorContains(t, err, "already exists")

	created.(*User).Email = "dee@example.com"
	_, err = users.Update(ctx, created)
	require.NoError(t, err)

	got, err := users.Get(ctx, 13)
	require.NoError(t, err)
	assert.Equal(t, "dee@example.com", got.(*User).Email)
	assert.Equal(t, "Docs", got.(*User).Team.(*Team).Name)

	_, err = users.Delete(ctx, got)
	require.NoError(t, err)
	_, err = users.Delete(ctx, got)
	assert.ErrorContains(t, err, "not found")

	var deleted []entity.ID
	for e, err := range users.DeleteList(ctx, &User{Base: baseWithID(10)}, &User{Base: baseWithID(99)}) {
		require.NoError(t, err)
		deleted = append(deleted, e.EntityID())
	}
	assert.Equal(t, []entity.ID{entity.IntID(10)}, deleted)
	assert.Equal(t, 2, p.Len(UserType))

	posts, err := dispatch.For(d, p, PostType).Collect(ctx, entity.OpCreateList, &Post{Title: "one", Author: 11}, &Post{Title: "two", Author: 11})
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, entity.IntID(103), posts[0].EntityID())
	assert.Equal(t, entity.IntID(104), posts[1].EntityID())
}

func baseWithID(id int64) entity.Base {
	var b entity.Base
	b.SetEntityID(entity.IntID(id))
	return b
}

func TestHeartbeat(t *testing.T) {
	p := openDemo(t)
	d := newDispatcher(t, p)
	reg := d.Registry()
	ctx := context.Background()

	require.NoError(t, reg.CheckHeartbeat(ctx, p, 0))

	p.SetOffline(true)
	err := reg.CheckHeartbeat(ctx, p, 0)
	require.Error(t, err)
	assert.True(t, registry.IsUnreachable(err))
	assert.ErrorIs(t, err, ErrOffline)

	p.SetOffline(false)
	assert.NoError(t, reg.CheckHeartbeat(ctx, p, 0))

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(t, p.Heartbeat(canceled))
}

func TestSerializeRulesPerPurpose(t *testing.T) {
	p := openDemo(t)
	d := newDispatcher(t, p)

	e, err := dispatch.For(d, p, UserType).Get(context.Background(), 10)
	require.NoError(t, err)

	display, err := serialize.Serialize(e, serialize.ForEntity(nil, e, serialize.PurposeDisplay))
	require.NoError(t, err)
	assert.NotContains(t, display.(map[string]any), "Secret")
	assert.Equal(t, "2024-01-02", display.(map[string]any)["Joined"])

	reg, err := serialize.Serialize(e, serialize.ForEntity(nil, e, serialize.PurposeRegistry))
	require.NoError(t, err)
	m := reg.(map[string]any)
	assert.Equal(t, int64(1), m["TeamId"])
	assert.NotContains(t, m, "Posts")
	assert.Equal(t, "s3cret", m["Secret"])
}

func TestIdentity(t *testing.T) {
	p := openDemo(t)
	assert.Equal(t, []string{"memory", "demo"}, p.BackendIdentity())
	assert.Equal(t, "2024-05-06", p.DateFormatter().FormatDate(time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)))
	assert.Len(t, Types(), 3)
	for _, typ := range Types() {
		assert.NoError(t, typ.Validate())
	}
}
