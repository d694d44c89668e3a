// Package engine implements the minimal discrete-event simulation primitives
// the controller drives: platform instantiation, a simulated clock, compute
// service startup, and standard job scheduling and completion.
//
// The platform description accepted by LoadPlatform is a small XML document,
// not the full SimGrid platform schema. Each <host> element declares the
// simulated capacity of one machine:
//
//	<platform>
//	  <host id="ControllerHost" cores="8" flop_rate="1e9"/>
//	  <host id="ComputeHost1" cores="16" flop_rate="2e9"/>
//	</platform>
//
// A job's completion date is computed deterministically from the flop count
// of its tasks and the flop rate and core count of the service it runs on;
// there is no contention model between concurrently running jobs. This
// engine is not a general-purpose cluster simulator — it implements exactly
// the primitives the controller needs and nothing more.
package engine
