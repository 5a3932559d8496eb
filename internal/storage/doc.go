// Package storage provides the key-value state of the built-in lighthouse
// workload.
//
// # Overview
//
// The daemon ships a small replicated key-value service so a group can be
// exercised without writing a host program. The active node serves it under
// /app/kv; every write is broadcast to the other nodes as the
// synchronization payload, and every accepted payload replaces the local
// content. A promoted slave therefore starts serving from the last state
// the old master published.
//
//	 PUT /app/kv/color ──► MemoryStore.Put
//	                          │
//	                          ▼
//	                   Snapshot() ──► Controller.Broadcast ──► peers
//	                                                           │
//	                                                           ▼
//	                                       OnUpdate ──► MemoryStore.Replace
//
// # Values
//
// Values are JSON documents stored in encoded form. Put rejects anything
// that is not valid JSON, so a snapshot always decodes.
//
// # Thread Safety
//
// MemoryStore guards its map with a sync.RWMutex. Get and Put copy byte
// slices in both directions; Replace swaps the whole map at once so readers
// never observe a half-applied payload.
package storage
