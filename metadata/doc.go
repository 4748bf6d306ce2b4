// Package metadata provides the typed metadata attached to stored vectors.
//
// A Document maps field names to Values. Values are a small tagged union
// (null, int, float, string, bool, array) that filters can compare without
// reflection.
//
//	meta := metadata.Document{
//	    "lang":  metadata.String("go"),
//	    "stars": metadata.Int(42),
//	}
//
// Documents encode to and from plain JSON objects, which is how they are
// stored inside partitions:
//
//	{"lang":"go","stars":42}
//
// # Filters
//
// A FilterSet is a conjunction of field predicates evaluated against a
// Document after vector scoring:
//
//	fs := metadata.NewFilterSet(
//	    metadata.Eq("lang", metadata.String("go")),
//	    metadata.Gte("stars", metadata.Int(10)),
//	)
//	fs.Matches(meta) // true
package metadata
