// Package install acquires, verifies, and installs the terraform-ls binary.
//
// # Security Model
//
// A release artifact is never installed unverified. Every download is:
//   - Retrieved only from the configured release index's build URLs
//   - Checked against the release's published SHA-256 checksum manifest
//   - Optionally authenticated by verifying the manifest's detached PGP
//     signature when a signing key is configured
//
// # Pipeline
//
// Install runs the acquisition pipeline end to end:
//
//	probe installed version -> resolve latest release -> confirm with user ->
//	select platform build -> download -> verify -> unpack
//
// Any failure after the download starts removes the in-progress package
// file before the error propagates, so the target directory never retains a
// corrupt or unverified archive. A probe failure alone is not fatal; it is
// logged and treated as "not installed".
//
// # Components
//
//   - Installer: orchestration, progress reporting, cancellation, cleanup
//   - Fetcher: HTTP download with bounded redirect following
//   - Verifier: concurrent stream-hash and manifest fetch, joined digests
//   - Unpack: zip extraction with the payload marked executable
package install
