// SPDX-License-Identifier: MPL-2.0

// Package lifecycle gates a deployment on the host server process.
//
// The decision itself is the pure function Decide. Controller performs the
// I/O around it: process detection, the operator prompt, the countdown and
// termination. Platform specifics sit behind the Host capability, which is
// a no-op outside Windows.
package lifecycle
