package install

import "fmt"

// NetworkError indicates a transport-level failure (connection reset, DNS
// failure, cancellation mid-stream) while fetching a remote resource.
type NetworkError struct {
	URL string
	Err error
}

// Error returns a description of the network failure.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("network failure fetching %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// DownloadError indicates the server answered with a non-success,
// non-redirect status.
type DownloadError struct {
	URL    string
	Status string
}

// Error returns the status text the server answered with.
func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: unexpected response %s", e.URL, e.Status)
}

// UnsupportedPlatformError indicates the release publishes no build for the
// host platform. Fatal; no partial state is created.
type UnsupportedPlatformError struct {
	OS   string
	Arch string
}

// Error names the missing platform pair.
func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("no release build for platform %s/%s", e.OS, e.Arch)
}

// ChecksumNotFoundError indicates the checksum manifest has no entry for the
// downloaded build file.
type ChecksumNotFoundError struct {
	Filename string
}

// Error names the file missing from the manifest.
func (e *ChecksumNotFoundError) Error() string {
	return fmt.Sprintf("no checksum for %s in manifest", e.Filename)
}

// ChecksumMismatchError indicates the downloaded file's digest differs from
// the published one. Fatal; the package is never installed.
type ChecksumMismatchError struct {
	Filename string
	Expected string
	Computed string
}

// Error reports both digests.
func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected %s, computed %s",
		e.Filename, e.Expected, e.Computed)
}

// SignatureError indicates the checksum manifest's detached signature did
// not verify against the configured signing key. Fatal, like a mismatch.
type SignatureError struct {
	Err error
}

// Error returns a description of the signature failure.
func (e *SignatureError) Error() string {
	return fmt.Sprintf("checksum manifest signature verification failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *SignatureError) Unwrap() error {
	return e.Err
}

// ArchiveError indicates the downloaded archive could not be opened or
// extracted.
type ArchiveError struct {
	Path string
	Err  error
}

// Error returns a description of the archive failure.
func (e *ArchiveError) Error() string {
	return fmt.Sprintf("unpack %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *ArchiveError) Unwrap() error {
	return e.Err
}
