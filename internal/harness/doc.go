// Package harness runs weaving scenarios end to end.
//
// A scenario names fixture classes, optional configuration overrides, a
// flow of constructor and method calls, and assertions over what the
// woven classes did at run time. The harness weaves every fixture with
// the engine, loads the results into the interpreter with a tracing hook
// runtime, and executes the flow.
//
// # Scenario Format
//
//	name: hello_world
//	description: "Woven HelloWorld logs every entry"
//	fixtures:
//	  - hello_world
//	config:
//	  max_arity: 10
//	  exclude: 'name == "bar"'
//	flow:
//	  - new: ctransform/HelloWorld
//	  - invoke: ctransform/HelloWorld.foo
//	    desc: (Ljava/lang/String;)Ljava/lang/String;
//	    args: [hello]
//	    expect:
//	      return: foobar hello
//	assertions:
//	  - type: log_contains
//	    name: foo
//	    args: [hello]
//	  - type: log_order
//	    names: [<init>, foo, bar]
//
// Fixtures are hello_world, mixed and arity:N.
//
// # Assertion Types
//
//   - log_contains: the log sink saw name, with exactly args when given
//   - log_order: names appear in the log sink in order, gaps allowed
//   - log_count: the log sink saw name exactly count times
//   - wrap_count: WrapLoggable ran exactly count times
//   - info_contains: a wrapped logger saw a message containing text
//   - member: member of class ended with outcome
//   - injected: the woven classes carry count injections in total
//   - warning_contains: a transform warning contains text
//
// # Golden Files
//
// RunWithGolden renders the transform results and the trace as canonical
// JSON and compares them with testdata/golden/<name>.golden. Run the tests
// with -update to rewrite the files.
package harness
