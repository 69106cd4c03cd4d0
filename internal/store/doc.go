// Package store defines the persistence interfaces the engine depends on.
// Implementations live in internal/repository; services depend only on
// these interfaces so the business logic can be tested without a database.
package store
