package install

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"golang.org/x/sync/errgroup"

	"github.com/lsmux/lsmux/internal/releases"
)

// Verifier checks a downloaded package against the release's published
// checksum manifest. When a signing keyring is present, the manifest itself
// is authenticated via its detached PGP signature before any digest from it
// is trusted.
type Verifier struct {
	fetcher *Fetcher
	keyring openpgp.EntityList // nil disables signature verification
}

// NewVerifier creates a verifier. keyring may be nil, in which case the
// manifest is used without signature verification.
func NewVerifier(fetcher *Fetcher, keyring openpgp.EntityList) *Verifier {
	return &Verifier{
		fetcher: fetcher,
		keyring: keyring,
	}
}

// Verify stream-hashes the local package file and fetches the checksum
// manifest concurrently, then compares the computed digest against the
// manifest entry for buildFilename. The two tasks are joined before any
// comparison; either failure aborts the other via the shared context.
func (v *Verifier) Verify(ctx context.Context, release *releases.Release, packagePath string, build *releases.Build) error {
	sumsURL, err := release.ShasumsURL(build)
	if err != nil {
		return fmt.Errorf("resolve checksum manifest url: %w", err)
	}

	var (
		computed string
		manifest []byte
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		computed, err = hashFile(gctx, packagePath)
		return err
	})
	g.Go(func() error {
		var err error
		manifest, err = v.fetcher.Fetch(gctx, sumsURL)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if v.keyring != nil {
		if err := v.verifyManifestSignature(ctx, release, build, manifest); err != nil {
			return err
		}
	}

	expected, err := manifestDigest(manifest, build.Filename)
	if err != nil {
		return err
	}

	// Hex digests are compared byte-exact; the manifest is authoritative
	// about case.
	if computed != expected {
		return &ChecksumMismatchError{
			Filename: build.Filename,
			Expected: expected,
			Computed: computed,
		}
	}

	return nil
}

// verifyManifestSignature fetches the detached signature published next to
// the manifest and checks it against the keyring.
func (v *Verifier) verifyManifestSignature(ctx context.Context, release *releases.Release, build *releases.Build, manifest []byte) error {
	sigURL, ok, err := release.ShasumsSignatureURL(build)
	if err != nil {
		return fmt.Errorf("resolve signature url: %w", err)
	}
	if !ok {
		return &SignatureError{Err: fmt.Errorf("release %s publishes no manifest signature", release.Version)}
	}

	sig, err := v.fetcher.Fetch(ctx, sigURL)
	if err != nil {
		return err
	}

	if err := verifyDetached(v.keyring, manifest, sig); err != nil {
		return &SignatureError{Err: err}
	}
	return nil
}

// hashFile computes the SHA-256 digest of the file at path, honoring
// cancellation between reads.
func hashFile(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open package: %w", err)
	}
	defer file.Close()

	hasher := sha256.New()
	buf := make([]byte, 64*1024)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := file.Read(buf)
		if n > 0 {
			hasher.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read package: %w", err)
		}
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// manifestDigest extracts the digest for filename from a plaintext checksum
// manifest. Each line reads "<hex-digest><whitespace run><filename>"; the
// digest is the token before the first whitespace run.
func manifestDigest(manifest []byte, filename string) (string, error) {
	scanner := bufio.NewScanner(strings.NewReader(string(manifest)))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		if fields[1] == filename {
			return fields[0], nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan manifest: %w", err)
	}

	return "", &ChecksumNotFoundError{Filename: filename}
}
