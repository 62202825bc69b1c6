package registry

import (
	"iter"
	"runtime"
	"slices"
)

// Platform names used in PackageEntry.Platforms.
const (
	PlatformMacOS   = "macos"
	PlatformLinux   = "linux"
	PlatformWindows = "windows"
	PlatformUnknown = "unknown"
)

// CurrentPlatform maps runtime.GOOS to a platform name.
func CurrentPlatform() string {
	switch runtime.GOOS {
	case "darwin":
		return PlatformMacOS
	case "linux":
		return PlatformLinux
	case "windows":
		return PlatformWindows
	default:
		return PlatformUnknown
	}
}

// SupportsPlatform reports whether the entry runs on platform.
func (e PackageEntry) SupportsPlatform(platform string) bool {
	return len(e.Platforms) == 0 || slices.Contains(e.Platforms, platform)
}

// PlatformCompatible yields the enabled entries that run on platform.
func PlatformCompatible(r *PackageRegistry, platform string) iter.Seq2[string, PackageEntry] {
	return func(yield func(string, PackageEntry) bool) {
		for id, entry := range r.Enabled() {
			if !entry.SupportsPlatform(platform) {
				continue
			}
			if !yield(id, entry) {
				return
			}
		}
	}
}
