package models

import "time"

// Image is a gallery entry hosted on the media store. ID equals the remote
// asset key, so it may contain slashes.
type Image struct {
	ID        string    `json:"id"`
	ImageURL  string    `json:"imageUrl"`
	AssetID   string    `json:"assetId"`
	Date      string    `json:"date"`
	CreatedAt time.Time `json:"createdAt"`
}

type UpdateImageDateRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}
