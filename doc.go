// Package declare memoizes expensive, named steps across process restarts.
//
// A Store maps ids to live resources. Callers declare a name together with a
// Constructor and the data the resource is built from:
//
//	store, err := declare.Open(ctx, "story", registry, declare.WithPersistence(p))
//	v, err := store.Declare(ctx, "hero", declare.Declaration{Constructor: c, Data: data})
//
// The constructor derives the id from the name. On the first declaration the
// resource is created; later declarations of the same id reuse it unless the
// constructor's UpdatePolicy asks for a rebuild. Policies range from
// AlwaysReuse to WhenChanged over selected data keys, Go predicates and rules
// written in expr or CEL (and JavaScript with the js_eval build tag).
//
// Save serializes every declared resource, in first-declaration order, into
// a ContextState and hands it to the configured Persistence. Open loads that
// state back and rebuilds each entry through the constructor registered
// under the persisted identity, so a reloaded store answers declarations
// without calling out again.
//
// Declarations may run concurrently. Builds of one id with the same data
// share a single call; two constructors claiming one id fail with
// ErrIdentifierCollision.
package declare
