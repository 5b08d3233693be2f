package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBannerUpdate_Apply(t *testing.T) {
	b := NewDefaultBanner("2026-01-02", 0)
	discount := 70
	heading := "Night sale"

	upd := BannerUpdate{DiscountPercentage: &discount, Heading: &heading}
	assert.False(t, upd.IsEmpty())
	upd.Apply(b)

	assert.Equal(t, 70, b.DiscountPercentage)
	assert.Equal(t, "Night sale", b.Heading)
	assert.Equal(t, DefaultBannerDescription, b.Description)
	assert.Equal(t, "2026-01-02", b.Date)
	assert.Nil(t, b.Image)
}

func TestBannerUpdate_IsEmpty(t *testing.T) {
	assert.True(t, BannerUpdate{}.IsEmpty())
}

func TestBanner_Response(t *testing.T) {
	b := NewDefaultBanner("2026-01-02", 50)
	assert.Empty(t, b.Response().ImageURL)

	b.Image = &BannerImage{Data: []byte{0x89, 0x50}, ContentType: "image/png", Filename: "bg.png"}
	resp := b.Response()
	assert.Equal(t, BannerImagePath, resp.ImageURL)
	assert.Equal(t, "image/png", resp.ImageContentType)
	assert.Equal(t, "bg.png", resp.ImageFilename)
}

func TestWithSettingDefaults(t *testing.T) {
	got := WithSettingDefaults(map[string]string{"footer": "x", SettingHeaderText: "Custom"})

	assert.Equal(t, "Custom", got[SettingHeaderText])
	assert.Equal(t, DefaultSubheaderText, got[SettingSubheaderText])
	assert.Equal(t, "x", got["footer"])
}
