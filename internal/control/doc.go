// Package control defines the values exchanged on the control surface:
// transport enums, entity descriptions, timing records and the error
// kinds every operation reports.
//
// The types are shared by the registry, the engine, the dispatch table
// and the RPC gateway. They encode to JSON exactly as they appear on the
// wire.
package control
