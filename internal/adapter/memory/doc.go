// Package memory provides single-process implementations of the board store
// and the broker. They back STORE_BACKEND=memory and BROKER_BACKEND=memory and
// serve as fast test doubles.
package memory
