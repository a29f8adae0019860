// Package cache provides the persistent key-value store behind the HTTP
// response cache, with multiple interchangeable backends.
//
// The [Store] interface defines four operations: [Store.Get], [Store.Set],
// [Store.Delete], and [Store.Close]. Values are opaque byte slices — the
// caller owns serialization. All operations take a context; I/O-backed
// backends apply a per-operation timeout ([DefaultQueryTimeout]) derived from
// it so a slow backend cannot hang a request.
//
// Five implementations are provided:
//
//   - [NewInMemory] — in-process map guarded by a mutex. Fastest option;
//     lost on restart. Expired entries are removed lazily on Get and by a
//     background sweep goroutine.
//
//   - [NewSQLite] — backed by a SQLite database using modernc.org/sqlite
//     (pure Go, no CGO). Supports file-backed and ":memory:" modes. WAL mode
//     is enabled for concurrent read performance.
//
//   - [NewRedis] — backed by Redis using github.com/redis/go-redis/v9 with
//     native TTL expiry. An optional key prefix supports namespacing. The
//     caller owns the redis.Client lifecycle; Close is a no-op on the client.
//
//   - [NewLevelDB] — backed by a local LevelDB database using
//     github.com/syndtr/goleveldb. The expiry timestamp is encoded in the
//     value; expired entries are removed lazily on Get and by a background
//     sweep.
//
//   - [NewComposite] — chains multiple stores. Get returns the first hit
//     (left to right), Set fans out to every tier, Delete removes from all.
//     Enables topologies such as in-memory L1 backed by Redis L2.
//
// Store failures never fail the owning request: the dispatcher treats a
// failed Get as a cache miss and a failed Set as best-effort.
package cache
