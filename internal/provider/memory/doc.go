// Package memory is a reference provider serving teams, users and posts
// from a YAML dataset held in memory.
//
// References between records are returned as placeholders: a user's team
// and a post's author and mentions are deferred entity references, while a
// team's members and a user's posts are deferred relationships resolved
// through the list operation. Relationships are only deferred for
// top-level operations, so fetching a placeholder never starts an endless
// chain of further fetches.
package memory
