// Package testutil provides helpers for testing gatekit wiring.
//
// ScriptedEngine is a fake backend with per-operation scripts, failure
// injection and health toggling. Setup starts a component and stops it
// when the test ends. Eventually polls until a condition holds or the
// deadline passes.
package testutil
