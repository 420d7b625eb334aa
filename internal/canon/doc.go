// Package canon provides canonical JSON encoding for plain data trees.
//
// Serialized entity graphs, error records and provider identity tuples are
// all plain trees (maps, slices, scalars). Anything that is hashed or
// compared structurally goes through MarshalCanonical so that two equal
// trees always produce the same bytes:
//   - Object keys sorted by UTF-16 code units (RFC 8785)
//   - No HTML escaping
//   - Strings NFC normalized
//   - No insignificant whitespace
//
// Unlike a strict RFC 8785 encoder, null and finite floats are accepted:
// serialized entities routinely carry both.
package canon
