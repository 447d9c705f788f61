package restic

import (
	"fmt"
	"strings"
)

// UnameCommand prints the agent's machine hardware name.
const UnameCommand = "uname -m"

// Arch maps `uname -m` output to the architecture suffix of restic release
// assets. Unknown machines fall back to amd64.
func Arch(machine string) string {
	switch strings.TrimSpace(machine) {
	case "aarch64", "arm64":
		return "arm64"
	case "armv7l", "armv6l", "armv5tel":
		return "arm"
	case "i386", "i686":
		return "386"
	case "ppc64le":
		return "ppc64le"
	case "s390x":
		return "s390x"
	default:
		return "amd64"
	}
}

func assetName(arch string) string {
	return fmt.Sprintf("restic_%s_linux_%s", Version, arch)
}

// DownloadURL returns the release asset for arch.
func DownloadURL(arch string) string {
	return fmt.Sprintf("https://github.com/restic/restic/releases/download/v%s/%s.bz2", Version, assetName(arch))
}

// InstallCommand downloads restic into installLocation and lets it update
// itself to the latest release.
func InstallCommand(installLocation, arch string) string {
	asset := assetName(arch)
	return strings.Join([]string{
		"cd " + installLocation,
		"curl -fLO " + DownloadURL(arch),
		fmt.Sprintf("bzip2 -df %s.bz2", asset),
		fmt.Sprintf("mv %s restic", asset),
		"chmod +x restic",
		"./restic self-update",
	}, " && ")
}
