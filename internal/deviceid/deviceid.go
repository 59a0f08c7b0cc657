// Package deviceid implements A5: stable device identifiers in the
// `<type>-<platform>-<uuid>` shape the client persists in settings and
// stamps onto every pushed row (spec §6.3). Grounded on
// original_source/note-sync-server/src/services/device_identifier_service.rs
// (parse_device_id/identify_device/get_device_name/get_device_icon),
// ported from Rust enums + FromStr to Go string-backed types.
package deviceid

import (
	"strings"

	"github.com/google/uuid"
)

// Type classifies the device's form factor.
type Type string

const (
	TypeDesktop Type = "desktop"
	TypeMobile  Type = "mobile"
	TypeTablet  Type = "tablet"
	TypeUnknown Type = "unknown"
)

func parseType(s string) Type {
	switch strings.ToLower(s) {
	case "desktop":
		return TypeDesktop
	case "mobile":
		return TypeMobile
	case "tablet":
		return TypeTablet
	default:
		return TypeUnknown
	}
}

// Platform classifies the device's operating system.
type Platform string

const (
	PlatformWindows Platform = "windows"
	PlatformMacOS   Platform = "macos"
	PlatformLinux   Platform = "linux"
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
	PlatformUnknown Platform = "unknown"
)

func parsePlatform(s string) Platform {
	switch strings.ToLower(s) {
	case "windows":
		return PlatformWindows
	case "macos":
		return PlatformMacOS
	case "linux":
		return PlatformLinux
	case "android":
		return PlatformAndroid
	case "ios":
		return PlatformIOS
	default:
		return PlatformUnknown
	}
}

// Info is the parsed shape of a device identifier.
type Info struct {
	DeviceType Type
	Platform   Platform
	UUID       string
	RawID      string
}

// New mints a fresh `<type>-<platform>-<uuid>` device identifier string,
// the format ParseDeviceID expects going forward.
func New(deviceType Type, platform Platform) string {
	return string(deviceType) + "-" + string(platform) + "-" + uuid.New().String()
}

// ParseDeviceID parses a device_id string. It accepts three formats for
// backward compatibility with already-registered devices:
//
//	<type>-<platform>-<uuid>   current format
//	default-<legacy-id>        legacy format predating type/platform
//	<platform>-<uuid>          transitional format (type inferred from platform)
func ParseDeviceID(deviceID string) (Info, bool) {
	parts := strings.Split(deviceID, "-")

	switch {
	case len(parts) >= 3:
		return Info{
			DeviceType: parseType(parts[0]),
			Platform:   parsePlatform(parts[1]),
			UUID:       strings.Join(parts[2:], "-"),
			RawID:      deviceID,
		}, true

	case len(parts) == 2 && parts[0] == "default":
		return Info{
			DeviceType: TypeUnknown,
			Platform:   PlatformUnknown,
			UUID:       parts[1],
			RawID:      deviceID,
		}, true

	case len(parts) == 2:
		platform := parsePlatform(parts[0])
		deviceType := TypeUnknown
		switch platform {
		case PlatformWindows, PlatformMacOS, PlatformLinux:
			deviceType = TypeDesktop
		case PlatformAndroid, PlatformIOS:
			deviceType = TypeMobile
		}
		return Info{
			DeviceType: deviceType,
			Platform:   platform,
			UUID:       parts[1],
			RawID:      deviceID,
		}, true

	default:
		return Info{}, false
	}
}

// Identify refines ParseDeviceID's result using the request's User-Agent,
// the same two-pass heuristic as identify_device: a mobile/unknown
// device_type can be upgraded to tablet (iPad, or Android without
// "Mobile" in its UA), and an unknown type can be inferred from the UA
// when the device_id itself carried no useful hint.
func Identify(deviceID, userAgent string) (Info, bool) {
	info, ok := ParseDeviceID(deviceID)
	if !ok {
		return info, false
	}

	if info.DeviceType != TypeMobile && info.DeviceType != TypeUnknown {
		return info, true
	}
	if userAgent == "" {
		return info, true
	}
	ua := strings.ToLower(userAgent)

	switch {
	case strings.Contains(ua, "ipad"):
		info.DeviceType = TypeTablet
	case info.Platform == PlatformAndroid && strings.Contains(ua, "android") && !strings.Contains(ua, "mobile"):
		info.DeviceType = TypeTablet
	case info.DeviceType == TypeUnknown:
		switch {
		case strings.Contains(ua, "iphone"), strings.Contains(ua, "android"), strings.Contains(ua, "mobile"):
			info.DeviceType = TypeMobile
		case strings.Contains(ua, "windows"), strings.Contains(ua, "macintosh"), strings.Contains(ua, "linux"):
			info.DeviceType = TypeDesktop
		}
	}
	return info, true
}

// Name returns a human-friendly label for a device, e.g. "Windows desktop".
func Name(info Info) string {
	switch {
	case info.DeviceType == TypeDesktop && info.Platform == PlatformWindows:
		return "Windows desktop"
	case info.DeviceType == TypeDesktop && info.Platform == PlatformMacOS:
		return "Mac desktop"
	case info.DeviceType == TypeDesktop && info.Platform == PlatformLinux:
		return "Linux desktop"
	case info.DeviceType == TypeMobile && info.Platform == PlatformAndroid:
		return "Android phone"
	case info.DeviceType == TypeMobile && info.Platform == PlatformIOS:
		return "iPhone"
	case info.DeviceType == TypeTablet && info.Platform == PlatformAndroid:
		return "Android tablet"
	case info.DeviceType == TypeTablet && info.Platform == PlatformIOS:
		return "iPad"
	default:
		return string(info.Platform) + " " + string(info.DeviceType)
	}
}
