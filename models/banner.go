package models

import "time"

const (
	DefaultBannerHeading     = "Welcome"
	DefaultBannerDescription = "Exclusive offers updated every day"

	// BannerImagePath is where the stored banner image is served from.
	BannerImagePath = "/api/banner/image"
)

// BannerImage is an image stored inline in the banner document.
type BannerImage struct {
	Data        []byte `json:"-"`
	ContentType string `json:"contentType"`
	Filename    string `json:"filename"`
}

type Banner struct {
	ID                 string       `json:"id"`
	DiscountPercentage int          `json:"discountPercentage"`
	Date               string       `json:"date"`
	Heading            string       `json:"heading"`
	Description        string       `json:"description"`
	Image              *BannerImage `json:"image,omitempty"`
	CreatedAt          time.Time    `json:"createdAt"`
	UpdatedAt          time.Time    `json:"updatedAt"`
}

// BannerUpdate is a partial-field update. Nil fields are left untouched.
type BannerUpdate struct {
	DiscountPercentage *int
	Date               *string
	Heading            *string
	Description        *string
	Image              *BannerImage
}

func (u BannerUpdate) IsEmpty() bool {
	return u.DiscountPercentage == nil && u.Date == nil && u.Heading == nil &&
		u.Description == nil && u.Image == nil
}

// Apply copies the set fields of u onto b.
func (u BannerUpdate) Apply(b *Banner) {
	if u.DiscountPercentage != nil {
		b.DiscountPercentage = *u.DiscountPercentage
	}
	if u.Date != nil {
		b.Date = *u.Date
	}
	if u.Heading != nil {
		b.Heading = *u.Heading
	}
	if u.Description != nil {
		b.Description = *u.Description
	}
	if u.Image != nil {
		img := *u.Image
		b.Image = &img
	}
}

// NewDefaultBanner builds the banner used when none exists yet.
func NewDefaultBanner(date string, discount int) *Banner {
	return &Banner{
		DiscountPercentage: discount,
		Date:               date,
		Heading:            DefaultBannerHeading,
		Description:        DefaultBannerDescription,
	}
}

// BannerResponse is the public JSON shape of a banner.
type BannerResponse struct {
	ID                 string    `json:"id"`
	DiscountPercentage int       `json:"discountPercentage"`
	Date               string    `json:"date"`
	Heading            string    `json:"heading"`
	Description        string    `json:"description"`
	ImageURL           string    `json:"imageUrl,omitempty"`
	ImageContentType   string    `json:"imageContentType,omitempty"`
	ImageFilename      string    `json:"imageFilename,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func (b *Banner) Response() BannerResponse {
	resp := BannerResponse{
		ID:                 b.ID,
		DiscountPercentage: b.DiscountPercentage,
		Date:               b.Date,
		Heading:            b.Heading,
		Description:        b.Description,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
	}
	if b.Image != nil && len(b.Image.Data) > 0 {
		resp.ImageURL = BannerImagePath
		resp.ImageContentType = b.Image.ContentType
		resp.ImageFilename = b.Image.Filename
	}
	return resp
}

// UpdateBannerRequest is the body of PUT /api/banner.
type UpdateBannerRequest struct {
	DiscountPercentage *int    `json:"discountPercentage" validate:"omitempty,min=0,max=100"`
	Date               *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Heading            *string `json:"heading" validate:"omitempty,max=200"`
	Description        *string `json:"description" validate:"omitempty,max=2000"`
}
