// Package lib is the public SDK for stepq, a cooperative tick-driven task
// scheduler.
//
// stepq advances long-running or CPU-heavy work without monopolizing a
// goroutine's turn: work is split into small steps and a periodic pump runs
// one step of one task per tick, taking turns across isolated task groups so
// no caller starves another.
//
// Each [Client] created with [New] owns one grouping context on the shared
// process-wide scheduler; tasks submitted through different clients are
// interleaved round-robin. Use [Config].Standalone to get a private scheduler
// instead, typically in tests or when driving the pump manually with
// [Client.Update].
package lib
