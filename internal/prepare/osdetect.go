package prepare

import (
	"strings"

	"github.com/nodeforge/nodeforge/internal/types"
)

// osReleaseProbe is the command detect_os runs on the target host.
const osReleaseProbe = "cat /etc/os-release"

// ClassifyOS maps a free-text OS release string onto a canonical
// family. Unrecognized strings yield FamilyUnknown rather than failing;
// the engine decides downstream that no command table exists for it.
func ClassifyOS(release string) types.OSFamily {
	lower := strings.ToLower(release)

	switch {
	case strings.Contains(lower, "ubuntu"):
		return types.FamilyUbuntu
	case strings.Contains(lower, "debian"):
		return types.FamilyDebian
	case strings.Contains(lower, "rocky"),
		strings.Contains(lower, "red hat"),
		strings.Contains(lower, "rhel"),
		strings.Contains(lower, "centos"),
		strings.Contains(lower, "almalinux"):
		return types.FamilyRHEL
	case strings.Contains(lower, "fedora"):
		return types.FamilyFedora
	default:
		return types.FamilyUnknown
	}
}
