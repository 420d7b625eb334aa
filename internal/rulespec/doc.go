// Package rulespec builds serialization rule sets from text.
//
// Two sources are supported. CUE documents describe a whole rule set:
//
//	rules: {
//		max_depth:        8
//		detect_recursion: true
//		friendly_links:   true
//		date_layout:      "2006-01-02"
//		remove:  ["Secret", {path: "Token", type: "User"}]
//		replace: [{path: "Owner", as: "OwnerId"}, "Tags.[]"]
//		expressions: ["replace Author as AuthorId"]
//	}
//
// Rule expressions are single lines:
//
//	remove Secret
//	remove Token from User
//	replace Owner as OwnerId
//	replace Tags.[] with id
//	replace Team in User as TeamId
//
// A rule file holds one expression per line; blank lines and lines
// starting with "#" are skipped.
package rulespec
