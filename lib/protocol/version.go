// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// versionPrefix is the namespace prefix of every contract version
// string: "abp/v0.1" parses to {0, 1}.
const versionPrefix = "abp/v"

// Version parse errors.
var (
	// ErrInvalidFormat means the string is not of the form
	// "abp/vMAJOR.MINOR".
	ErrInvalidFormat = errors.New(`invalid version format (expected "abp/vMAJOR.MINOR")`)

	// ErrInvalidMajor means the major component is not a number.
	ErrInvalidMajor = errors.New("invalid major version component")

	// ErrInvalidMinor means the minor component is not a number.
	ErrInvalidMinor = errors.New("invalid minor version component")
)

// IncompatibleError reports that two versions cannot be negotiated
// because their major components differ.
type IncompatibleError struct {
	Local  ProtocolVersion
	Remote ProtocolVersion
}

func (e *IncompatibleError) Error() string {
	return fmt.Sprintf("incompatible protocol versions: local %s, remote %s", e.Local, e.Remote)
}

// ProtocolVersion is a parsed "abp/vMAJOR.MINOR" version. Versions are
// totally ordered by major, then minor.
type ProtocolVersion struct {
	Major uint32 `json:"major"`
	Minor uint32 `json:"minor"`
}

// ParseVersion parses a version string of the form "abp/vMAJOR.MINOR".
func ParseVersion(s string) (ProtocolVersion, error) {
	rest, ok := strings.CutPrefix(s, versionPrefix)
	if !ok {
		return ProtocolVersion{}, ErrInvalidFormat
	}
	majorStr, minorStr, ok := strings.Cut(rest, ".")
	if !ok {
		return ProtocolVersion{}, ErrInvalidFormat
	}
	major, err := strconv.ParseUint(majorStr, 10, 32)
	if err != nil {
		return ProtocolVersion{}, ErrInvalidMajor
	}
	minor, err := strconv.ParseUint(minorStr, 10, 32)
	if err != nil {
		return ProtocolVersion{}, ErrInvalidMinor
	}
	return ProtocolVersion{Major: uint32(major), Minor: uint32(minor)}, nil
}

// String formats the version as "abp/vMAJOR.MINOR".
func (version ProtocolVersion) String() string {
	return fmt.Sprintf("%s%d.%d", versionPrefix, version.Major, version.Minor)
}

// Compare returns -1, 0, or +1 ordering by major, then minor.
func (version ProtocolVersion) Compare(other ProtocolVersion) int {
	switch {
	case version.Major < other.Major:
		return -1
	case version.Major > other.Major:
		return 1
	case version.Minor < other.Minor:
		return -1
	case version.Minor > other.Minor:
		return 1
	}
	return 0
}

// IsCompatible reports whether a peer at version other can serve this
// side's requirements: same major, and the peer's minor is at least this
// side's minor. The check is directional — a.IsCompatible(b) does not
// imply b.IsCompatible(a).
func (version ProtocolVersion) IsCompatible(other ProtocolVersion) bool {
	return version.Major == other.Major && other.Minor >= version.Minor
}

// VersionRange is an inclusive range of protocol versions [Min, Max].
type VersionRange struct {
	Min ProtocolVersion `json:"min"`
	Max ProtocolVersion `json:"max"`
}

// Contains reports whether version falls within [Min, Max], inclusive.
func (r VersionRange) Contains(version ProtocolVersion) bool {
	return r.Min.Compare(version) <= 0 && r.Max.Compare(version) >= 0
}

// IsCompatible reports whether version is contained in the range and
// shares its major with both bounds.
func (r VersionRange) IsCompatible(version ProtocolVersion) bool {
	return r.Min.Major == version.Major &&
		r.Max.Major == version.Major &&
		r.Contains(version)
}

// Negotiate computes the effective protocol version between a local and
// remote peer: the smaller of the two when their majors match. The
// smaller version is the conservative choice both sides can speak.
// Returns an [IncompatibleError] when the majors differ.
func Negotiate(local, remote ProtocolVersion) (ProtocolVersion, error) {
	if local.Major != remote.Major {
		return ProtocolVersion{}, &IncompatibleError{Local: local, Remote: remote}
	}
	if remote.Compare(local) < 0 {
		return remote, nil
	}
	return local, nil
}

// IsCompatibleVersion is the loose handshake predicate: two version
// strings are compatible when both parse and share the same major,
// regardless of minor ordering. This is intentionally weaker than
// [ProtocolVersion.IsCompatible], which additionally requires the peer's
// minor to be at least ours — the handshake only needs to know the two
// sides speak the same dialect generation.
func IsCompatibleVersion(theirVersion, ourVersion string) bool {
	theirs, err := ParseVersion(theirVersion)
	if err != nil {
		return false
	}
	ours, err := ParseVersion(ourVersion)
	if err != nil {
		return false
	}
	return theirs.Major == ours.Major
}
