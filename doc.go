// Package dbasync gives synchronous-style callers non-blocking, future-
// returning access to a database through a small pool of goroutines, each
// holding its own connection. A caller builds a query with ResultSet,
// awaits the future its terminal method returns, and never blocks the
// event loop doing it.
//
// Open a Schema once per logical database:
//
//	schema, err := dbasync.Open(ctx, cfg)
//	...
//	fut := schema.ResultSet("users").Search(dbasync.Eq(map[string]any{"active": true}), dbasync.Attrs{}).All()
//	rows, err := fut.Await(ctx)
package dbasync
