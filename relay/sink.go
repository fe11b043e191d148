// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import "encoding/json"

// Sink receives the outcome of one relayed request. Exactly one of
// End or Error is called last, unless Data fails, in which case
// neither is.
type Sink interface {
	// Data receives one upstream frame, unparsed. An error means the
	// client is gone and ends the relay.
	Data(frame json.RawMessage) error

	// End is called after the last frame of a clean stream.
	End() error

	// Error is called when the request fails before or during the
	// stream.
	Error(err error)
}
