package models

import "fmt"

// Platform identifies an external publishing target
type Platform string

const (
	PlatformYouTube  Platform = "youtube"
	PlatformFacebook Platform = "facebook"
	PlatformTikTok   Platform = "tiktok"
)

// Platforms lists every known platform tag
func Platforms() []Platform {
	return []Platform{PlatformYouTube, PlatformFacebook, PlatformTikTok}
}

// ParsePlatform converts a string tag into a known Platform
func ParsePlatform(s string) (Platform, error) {
	switch Platform(s) {
	case PlatformYouTube, PlatformFacebook, PlatformTikTok:
		return Platform(s), nil
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// Action identifies a platform-specific publish operation
type Action string

const (
	ActionUploadVideo Action = "upload_video"
	ActionCreatePost  Action = "create_post"
	ActionUploadShort Action = "upload_short"
)

// ParseAction converts a string tag into a known Action
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionUploadVideo, ActionCreatePost, ActionUploadShort:
		return Action(s), nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}
