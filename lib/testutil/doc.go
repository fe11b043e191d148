// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for beak packages.
//
// [RequireReceive], [RequireClosed] and
// [RequireNoReceive] encapsulate the timeout safety valve pattern
// (select with time.After fallback) so that individual tests do not
// need direct time.After calls. These are the only place in the test
// suite where real wall-clock timeouts are used; everything that waits
// on time in production code takes a lib/clock Clock instead.
//
// [UniqueID] generates monotonically increasing identifiers for test
// disambiguation. Use it instead of time.Now() when tests need unique
// client keys or Redis key prefixes that must not collide between
// parallel tests sharing one server.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no beak-internal dependencies.
package testutil
