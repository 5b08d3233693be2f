package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pk55-api/models"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)

	assert.NotEqual(t, "s3cret", hash)
	assert.True(t, CheckPassword(hash, "s3cret"))
	assert.False(t, CheckPassword(hash, "wrong"))
	assert.False(t, CheckPassword("not-a-hash", "s3cret"))
}

func TestHashPassword_TooLong(t *testing.T) {
	_, err := HashPassword(strings.Repeat("a", 73))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestValidateDate(t *testing.T) {
	assert.True(t, ValidateDate("2026-02-28"))
	assert.False(t, ValidateDate("2026-02-30"))
	assert.False(t, ValidateDate("28/02/2026"))
	assert.False(t, ValidateDate(""))
	assert.Equal(t, "2026-03-01", FormatDate(time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)))
}

func TestSendErrorResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	SendErrorResponse(rec, http.StatusNotFound, "Banner not found")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body models.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, "Banner not found", body.Message)
	assert.Nil(t, body.Data)
}

func TestSendJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	SendJSON(rec, http.StatusCreated, models.APIResponse{Status: "success", Data: map[string]int{"n": 1}})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"status":"success","message":"","data":{"n":1}}`, rec.Body.String())
}
