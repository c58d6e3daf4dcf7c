// Package harness runs end-to-end evaluation scenarios against the engine.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	constructions:
//	  - ../constructions/accounts.cue
//	focus:
//	  oid: user-1
//	  type: UserType
//	  attributes: { name: jdoe }
//	task:
//	  partial_processing: { outbound: skip }
//	resolve:
//	  selectors: [{ path: associations.group, resolve_names: true }]
//	  names: { role-eng: Engineers }
//	projections:
//	  - construction: ldap-account
//	    current: { oid: shadow-1, resource: ldap, kind: account, attributes: {} }
//	    full: { attributes: { memberOf: [cn=eng] } }
//	assertions:
//	  - type: output
//	    projection: 0
//	    path: attributes.uid
//	    values: [jdoe]
//
// # Assertion Types
//
//   - outcome, run_status: the run's ExecutionResult
//   - next_recompute: the run's earliest recompute time, or "none"
//   - output, output_absent: the values a projection produced at a path
//   - projection_status: one projection's run status
//   - full_shadow_loads: how often a projection's full object was fetched
//   - schedule: the stored recompute time of a construction, or "none"
//
// # Deterministic Testing
//
// Every scenario runs with a fixed run ID, one worker, fake loaders and
// directory, and a fresh in-memory SQLite store, so RunWithGolden can
// compare the run snapshot byte for byte.
package harness
