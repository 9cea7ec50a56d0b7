package models

import "time"

// Platform is a source site (YouTube, TikTok, Instagram, ...). The bootstrap
// set is seeded once at first boot and is immutable afterward: nothing in
// this codebase updates or deletes a platform row.
type Platform struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	DisplayName string    `json:"display_name" db:"display_name"`
	BaseURL     string    `json:"base_url" db:"base_url"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// BootstrapPlatforms is the fixed platform list seeded on first boot.
var BootstrapPlatforms = []Platform{
	{Name: "youtube", DisplayName: "YouTube", BaseURL: "https://www.youtube.com"},
	{Name: "tiktok", DisplayName: "TikTok", BaseURL: "https://www.tiktok.com"},
	{Name: "instagram", DisplayName: "Instagram", BaseURL: "https://www.instagram.com"},
	{Name: "bilibili", DisplayName: "Bilibili", BaseURL: "https://www.bilibili.com"},
	{Name: "facebook", DisplayName: "Facebook", BaseURL: "https://www.facebook.com"},
	{Name: "twitter", DisplayName: "Twitter", BaseURL: "https://x.com"},
	{Name: "vimeo", DisplayName: "Vimeo", BaseURL: "https://vimeo.com"},
	{Name: "dailymotion", DisplayName: "Dailymotion", BaseURL: "https://www.dailymotion.com"},
	{Name: "pinterest", DisplayName: "Pinterest", BaseURL: "https://www.pinterest.com"},
	{Name: "flickr", DisplayName: "Flickr", BaseURL: "https://www.flickr.com"},
	{Name: "soundcloud", DisplayName: "SoundCloud", BaseURL: "https://soundcloud.com"},
	{Name: "newgrounds", DisplayName: "Newgrounds", BaseURL: "https://www.newgrounds.com"},
	{Name: "bitchute", DisplayName: "BitChute", BaseURL: "https://www.bitchute.com"},
	{Name: "peertube", DisplayName: "PeerTube", BaseURL: "https://joinpeertube.org"},
	{Name: "spotify", DisplayName: "Spotify", BaseURL: "https://open.spotify.com"},
	{Name: "twitch", DisplayName: "Twitch", BaseURL: "https://www.twitch.tv"},
	{Name: "iwara", DisplayName: "Iwara", BaseURL: "https://www.iwara.tv"},
	{Name: "patreon", DisplayName: "Patreon", BaseURL: "https://www.patreon.com"},
	{Name: "onlyfans", DisplayName: "OnlyFans", BaseURL: "https://onlyfans.com"},
	{Name: "substack", DisplayName: "Substack", BaseURL: "https://substack.com"},
	{Name: "discord", DisplayName: "Discord", BaseURL: "https://discord.com"},
	{Name: "mastodon", DisplayName: "Mastodon", BaseURL: "https://joinmastodon.org"},
	{Name: "telegram", DisplayName: "Telegram", BaseURL: "https://telegram.org"},
	{Name: "reddit", DisplayName: "Reddit", BaseURL: "https://www.reddit.com"},
	{Name: "tumblr", DisplayName: "Tumblr", BaseURL: "https://www.tumblr.com"},
	{Name: "odnoklassniki", DisplayName: "Odnoklassniki", BaseURL: "https://ok.ru"},
	{Name: "vk", DisplayName: "VK", BaseURL: "https://vk.com"},
	{Name: "whatsapp", DisplayName: "WhatsApp", BaseURL: "https://www.whatsapp.com"},
	{Name: "snapchat", DisplayName: "Snapchat", BaseURL: "https://www.snapchat.com"},
	{Name: "quora", DisplayName: "Quora", BaseURL: "https://www.quora.com"},
	{Name: "rule34", DisplayName: "Rule34", BaseURL: "https://rule34.xxx"},
	{Name: "kemono", DisplayName: "Kemono", BaseURL: "https://kemono.su"},
	{Name: "coomer", DisplayName: "Coomer", BaseURL: "https://coomer.su"},
}
