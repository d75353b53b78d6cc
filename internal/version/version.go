// Package version implements a total order over semantic versions of the
// form "M.m.p", used by the agent registry to track the latest version
// registered for a given agent id.
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidFormat is returned when a version string is not exactly three
// non-negative integer segments separated by dots.
var ErrInvalidFormat = errors.New("version: invalid format")

// Version is a (major, minor, patch) triple of non-negative integers,
// ordered lexicographically on those three coordinates.
type Version struct {
	Major int
	Minor int
	Patch int
}

// Parse converts "M.m.p" into a Version. Any other shape — wrong segment
// count, non-numeric segment, or a negative number — fails with
// ErrInvalidFormat.
func Parse(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}

	nums := make([]int, 3)
	for i, p := range parts {
		if p == "" || strings.ContainsAny(p, "+-") {
			return Version{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
		}
		nums[i] = n
	}

	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// String renders the version back as "M.m.p".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater than
// other, comparing lexicographically on (Major, Minor, Patch).
func (v Version) Compare(other Version) int {
	if v.Major != other.Major {
		return cmp(v.Major, other.Major)
	}
	if v.Minor != other.Minor {
		return cmp(v.Minor, other.Minor)
	}
	return cmp(v.Patch, other.Patch)
}

// GreaterThan reports whether v sorts strictly after other.
func (v Version) GreaterThan(other Version) bool {
	return v.Compare(other) > 0
}

func cmp(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
