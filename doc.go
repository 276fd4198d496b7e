// Package lienos provides a multi-tenant ledger and lifecycle engine for
// tax lien certificate portfolios.
//
// LeinOS is designed as a library, not a service. Import it directly into
// your Go application and wire it to the storage backend you already run.
// It provides:
//
//   - A tenant-scoped lien ledger with optimistic versioning
//   - Exact fixed-point interest accrual (no floating point anywhere)
//   - Append-only payment processing with redemption detection
//   - An exactly-once deadline alert scheduler with a configurable
//     escalation cascade
//   - Deduplicated notifications with read tracking
//   - Portfolio rollups and per-lien performance analytics
//   - Pluggable lifecycle hooks for audit trails and metrics
//
// # Quick Start
//
// Create an engine instance with your preferred store:
//
//	import (
//	    "github.com/3piecechickendinner/LeinOS"
//	    "github.com/3piecechickendinner/LeinOS/lien"
//	    "github.com/3piecechickendinner/LeinOS/store/memory"
//	    "github.com/3piecechickendinner/LeinOS/tenant"
//	)
//
//	engine := lienos.New(memory.New())
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
//	county := tenant.MustParse("maricopa-az")
//	l := &lien.Lien{
//	    CertificateNumber:  "2024-001234",
//	    Principal:          lienos.USD(850000),
//	    AnnualRate:         lienos.Percent(18),
//	    PurchaseDate:       lienos.MustParseDate("2024-05-15"),
//	    RedemptionDeadline: lienos.MustParseDate("2025-05-15"),
//	}
//	if err := engine.CreateLien(ctx, county, l); err != nil {
//	    log.Fatal(err)
//	}
//
// # Core Concepts
//
// Every operation is scoped by a tenant.ID capability. The zero value is
// rejected by every store, so an unscoped query is unrepresentable: you
// cannot forget the tenant filter, only fail to obtain a tenant at all.
//
// Liens move through a small state machine. ACTIVE is the only state with
// outgoing edges; REDEEMED, FORECLOSED, and EXPIRED are terminal. Payments
// drive REDEEMED, ForecloseLien drives FORECLOSED, and the deadline sweep
// is the only path to EXPIRED.
//
// Interest is simple and non-compounding. accrual.AccruedInterest is a
// pure function of (principal, rate, purchase date, as-of date) with all
// arithmetic in integer cents and basis points, so results are exact and
// identical on every invocation.
//
// Payments are append-only. Corrections are new entries, never edits, and
// a repeated (lien, date, amount, reference) tuple is rejected as a
// probable duplicate. RecordPayment commits the payment before touching
// lien status; ReconcileLien repairs a crash between the two writes.
//
// The deadline scheduler fires one alert per (lien, threshold) pair, ever.
// Each deadline instance carries its fired set, so sweeping twice a day or
// from two processes produces no duplicate alerts.
//
// # Storage Backends
//
// Four store implementations ship with the module: memory (tests and
// prototyping), sqlite, postgres, and mongo. All satisfy store.Store and
// enforce the same tenant isolation and versioning contract.
package lienos
