package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

// MaxUploadSize caps a single uploaded image.
const MaxUploadSize = 5 << 20

// multipart framing and other form fields
const uploadOverhead = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

const (
	msgNoFile       = "No file uploaded"
	msgNotImage     = "Only image files allowed"
	msgFileTooLarge = "File too large. Maximum size is 5MB"
)

var errInvalidBody = errors.New("invalid request body")

// allowedImageTypes are raster formats recognised by content sniffing.
// SVG and other markup types are refused since they can carry script.
var allowedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
}

// decodeJSON reads the body into dst and runs its validate tags.
func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errInvalidBody
	}
	if err := validate.Struct(dst); err != nil {
		return validationMessage(err)
	}
	return nil
}

func validationMessage(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errInvalidBody
	}

	fe := verrs[0]
	field := fe.Field()
	if len(field) > 0 {
		field = strings.ToLower(field[:1]) + field[1:]
	}

	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", field)
	case "datetime":
		return fmt.Errorf("%s must be in YYYY-MM-DD format", field)
	case "min", "max":
		return fmt.Errorf("%s must respect %s=%s", field, fe.Tag(), fe.Param())
	default:
		return fmt.Errorf("%s is invalid", field)
	}
}

type uploadedFile struct {
	Data        []byte
	ContentType string
	Filename    string
}

// readImageUpload parses a multipart request and returns the image sent in
// field. On failure it returns the HTTP status and client message instead.
func readImageUpload(w http.ResponseWriter, r *http.Request, field string) (*uploadedFile, int, string) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize+uploadOverhead)

	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, http.StatusRequestEntityTooLarge, msgFileTooLarge
		}
		return nil, http.StatusBadRequest, msgNoFile
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, http.StatusBadRequest, msgNoFile
	}
	defer file.Close()

	if header.Size > MaxUploadSize {
		return nil, http.StatusRequestEntityTooLarge, msgFileTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(file, MaxUploadSize+1))
	if err != nil {
		return nil, http.StatusBadRequest, msgNoFile
	}
	if len(data) > MaxUploadSize {
		return nil, http.StatusRequestEntityTooLarge, msgFileTooLarge
	}
	if len(data) == 0 {
		return nil, http.StatusBadRequest, msgNoFile
	}

	// the declared type is ignored, only the bytes decide
	contentType := http.DetectContentType(data)
	if !allowedImageTypes[contentType] {
		return nil, http.StatusBadRequest, msgNotImage
	}

	return &uploadedFile{
		Data:        data,
		ContentType: contentType,
		Filename:    filepath.Base(header.Filename),
	}, 0, ""
}

// imageID returns the {id} path variable, URL-unescaped.
func imageID(r *http.Request) string {
	id := mux.Vars(r)["id"]
	if unescaped, err := url.PathUnescape(id); err == nil {
		return unescaped
	}
	return id
}
