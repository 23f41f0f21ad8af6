package models

import "fmt"

// Platform is an external destination ban announcements are posted to.
type Platform string

const (
	PlatformVK       Platform = "vk"
	PlatformTelegram Platform = "tg"
)

// Platforms lists every supported platform in a stable order.
var Platforms = []Platform{PlatformVK, PlatformTelegram}

// ParsePlatform validates a platform name from config or CLI input.
func ParsePlatform(s string) (Platform, error) {
	switch Platform(s) {
	case PlatformVK, PlatformTelegram:
		return Platform(s), nil
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// PostColumn is the bans_data column holding the primary post id.
// Columns are fixed per platform; never build them from input.
func (p Platform) PostColumn() (string, bool) {
	switch p {
	case PlatformVK:
		return "vk_post", true
	case PlatformTelegram:
		return "tg_post", true
	}
	return "", false
}

func (p Platform) String() string {
	switch p {
	case PlatformVK:
		return "VK"
	case PlatformTelegram:
		return "Telegram"
	}
	return string(p)
}
