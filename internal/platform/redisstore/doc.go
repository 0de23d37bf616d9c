// Package redisstore implements the store interfaces on Redis.
//
// A Client is bound to one logical database and owns its connection pool.
// It connects lazily, probes liveness every HealthCheckInterval, and on a
// connection failure reconnects once and retries the failed operation
// exactly once. A Registry hands out one shared Client per database index
// so the application, broker and result backend each get their own pool
// without package-level singletons.
//
// OrderStore layers the order key layout on top of a Client. Its
// reservation runs as a single Lua script so the idempotency check, stock
// decrement, status write and follow-up outbox write cannot interleave with
// another worker.
package redisstore
