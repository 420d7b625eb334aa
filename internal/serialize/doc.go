// Package serialize converts entity graphs into plain trees of maps,
// slices and scalars that encode directly as JSON.
//
// The walk is depth-first and branches on node kind:
//
//   - unresolved placeholders become link records {"@type", "@id"}; the
//     serializer never fetches. An unresolved relationship links to its
//     owner and adds "@relationship" with the owner's property name
//   - entities are expanded through their field-mapping table, unless the
//     same record is already an ancestor on the current path, in which
//     case a link record marked "@why": "circular reference detected"
//     replaces it
//   - maps with string keys are walked field by field
//   - slices, arrays and maps with contiguous integer keys from zero are
//     lists; their elements are addressed by the list marker "[]"
//   - time values are formatted (rule set formatter, then the nearest
//     entity's provider formatter, then RFC 3339)
//   - scalars and nil pass through
//
// Anything else is an UNSERIALIZABLE_NODE error.
//
// # Rules
//
// A RuleSet removes or replaces fields by path. A single-segment path
// ("Secret") matches that field at any depth; a dotted path
// ("Owner.Team", "Tags.[]") matches from the root. When a field is both
// removed and replaced, the replacement wins. A replaced value is reduced
// to identifiers: entities to their Id, lists to lists of Ids.
package serialize
