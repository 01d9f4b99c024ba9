// ABOUTME: Tests for HTTP status to error kind mapping
// ABOUTME: Verifies sentinels survive wrapping and the server detail is preserved

package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusError_Kinds(t *testing.T) {
	tests := []struct {
		name   string
		op     string
		status int
		detail string
		want   error
	}{
		{"login 401", opLogin, http.StatusUnauthorized, "Incorrect email or password", ErrInvalidCredentials},
		{"me 401", opMe, http.StatusUnauthorized, "", ErrUnauthorized},
		{"403", opDocuments, http.StatusForbidden, "", ErrForbidden},
		{"404", opConversations, http.StatusNotFound, "", ErrNotFound},
		{"409", opRegister, http.StatusConflict, "", ErrEmailAlreadyExists},
		{"register 400 already", opRegister, http.StatusBadRequest, "Email already registered", ErrEmailAlreadyExists},
		{"register 400 other", opRegister, http.StatusBadRequest, "weak password", ErrValidation},
		{"login 400", opLogin, http.StatusBadRequest, "already", ErrValidation},
		{"422", opLogin, http.StatusUnprocessableEntity, "", ErrValidation},
		{"500", opMe, http.StatusInternalServerError, "", ErrServer},
		{"502", opStream, http.StatusBadGateway, "", ErrServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := statusError(tt.op, tt.status, tt.detail)
			assert.ErrorIs(t, err, tt.want)

			var apiErr *Error
			if assert.ErrorAs(t, err, &apiErr) {
				assert.Equal(t, tt.status, apiErr.Status)
			}
		})
	}
}

func TestStatusError_DefaultDetail(t *testing.T) {
	err := statusError(opMe, http.StatusInternalServerError, "")
	assert.Equal(t, "Internal Server Error", Detail(err))
}

func TestDetail(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", statusError(opLogin, http.StatusUnauthorized, "Incorrect email or password"))
	assert.Equal(t, "Incorrect email or password", Detail(wrapped))
	assert.ErrorIs(t, wrapped, ErrInvalidCredentials)

	assert.Equal(t, "plain", Detail(errors.New("plain")))
	assert.Empty(t, Detail(nil))
}
