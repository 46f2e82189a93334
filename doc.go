// Package flowcompose wires named, optionally memoized computations into a
// dependency graph that is resolved lazily, once per top-level call.
//
// # Overview
//
// Flowcompose organizes code around four concepts:
//
//  1. Flow functions: named computations with explicitly declared plain
//     parameters and dependency slots
//  2. Arguments: leaf units holding a typed, caller-suppliable value
//  3. Flows: entry points composed from a target body and a configuration
//     of named bindings
//  4. Contexts and invokers: the per-call resolution scope and the runtime
//     binding of one unit to it
//
// # Declaring parameters
//
// Every parameter says what it is. Plain parameters come first, slots after:
//
//	params := []flowcompose.Param{
//	    flowcompose.PlainOf[int]("userID"),
//	    flowcompose.Slot("db"),
//	    flowcompose.ArgSlot("limit").WithDefault(flowcompose.NewArgument(10)),
//	}
//
// Declaring a plain parameter after a slot is a CompositionError.
//
// # Flow functions
//
//	fetchUser := flowcompose.MustDefine("fetch_user",
//	    []flowcompose.Param{flowcompose.PlainOf[int]("id"), flowcompose.Slot("db")},
//	    func(in *flowcompose.Input) (*User, error) {
//	        id, _ := flowcompose.Value[int](in, "id")
//	        db, err := flowcompose.Pull[*DB](in, "db")
//	        if err != nil {
//	            return nil, err
//	        }
//	        return db.User(id)
//	    },
//	    flowcompose.Cached(),
//	)
//
// A cached function called twice with equal arguments inside one call runs
// once. Arguments are compared with ==; a non-comparable argument fails the
// call with an UncacheableError instead of bypassing the cache.
//
// # Flows
//
//	flow := flowcompose.MustCompose("profile",
//	    []flowcompose.Param{flowcompose.PlainOf[int]("id"), flowcompose.Slot("fetch_user")},
//	    flowcompose.Config{
//	        flowcompose.Bind("db", openDB),
//	        flowcompose.Bind("fetch_user", fetchUser),
//	        flowcompose.Bind("limit", flowcompose.NewArgument[int]()),
//	    },
//	    func(in *flowcompose.Input) (string, error) {
//	        id, _ := flowcompose.Value[int](in, "id")
//	        u, err := flowcompose.Pull[*User](in, "fetch_user", id)
//	        ...
//	    },
//	)
//
//	out, err := flow.Invoke([]any{42}, flowcompose.Values{"limit": 5})
//
// Slots resolve in this order, first match wins: a call-time value under the
// slot name, the slot's declared default, the configuration entry. A slot
// left without any of them fails the call with a ResolutionError listing
// every missing name.
//
// Arguments bound in the configuration but not declared by the target
// become external parameters of the flow (see Flow.Params). Values passed
// for them reach every dependent through injection; the target never
// receives them directly.
//
// # Concurrency
//
// Each call allocates its own Context, invokers and caches. Arguments used
// in a configuration or as defaults are templates cloned into a fresh value
// cell per call, so concurrent calls of one flow never observe each other's
// values.
//
// # Extensions
//
// Extensions observe invocations through middleware-style hooks:
//
//	flow := flowcompose.MustCompose(name, params, config, body,
//	    flowcompose.WithExtension(extensions.NewLoggingExtension(logger)),
//	)
//
// See package extensions for logging, metrics and graph debugging.
package flowcompose
