// Package app provides the application service layer.
//
// Coordinator owns the write path (atomic store increment, then publication of
// the post-write board). Service covers reads, creation and seeding. Both
// depend on domain interfaces, not concrete adapters.
package app
