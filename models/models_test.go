package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorResponseAcceptsStringOrArrayMessage(t *testing.T) {
	var single ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(`{"statusCode":401,"message":"Invalid credentials","error":"Unauthorized"}`), &single))
	assert.Equal(t, []string{"Invalid credentials"}, single.Message.Values)
	assert.False(t, single.Message.List)
	assert.Equal(t, "Unauthorized", single.Error)

	var list ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(`{"statusCode":400,"message":["email must be an email","password too short"]}`), &list))
	assert.Equal(t, []string{"email must be an email", "password too short"}, list.Message.Values)
	assert.True(t, list.Message.List)

	var missing ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(`{"statusCode":500}`), &missing))
	assert.True(t, missing.Message.Empty())

	var bad ErrorResponse
	assert.Error(t, json.Unmarshal([]byte(`{"message":{"nested":true}}`), &bad))
}

func TestParsePlatform(t *testing.T) {
	p, err := ParsePlatform(" WhatsApp ")
	require.NoError(t, err)
	assert.Equal(t, PlatformWhatsApp, p)
	assert.Equal(t, "WhatsApp", p.Label())

	_, err = ParsePlatform("signal")
	assert.Error(t, err)

	assert.Equal(t, PlatformTelegram, Platforms[0])
}

func TestRegisterRequestValidation(t *testing.T) {
	v := NewValidator()

	valid := RegisterRequest{Username: "ana", Email: "ana@example.com", Password: "secret1"}
	assert.NoError(t, v.Struct(valid))

	cases := map[string]RegisterRequest{
		"short username": {Username: "an", Email: "ana@example.com", Password: "secret1"},
		"long username":  {Username: "abcdefghijklmnopqrstuvwxyz12345", Email: "ana@example.com", Password: "secret1"},
		"bad email":      {Username: "ana", Email: "ana.example.com", Password: "secret1"},
		"short password": {Username: "ana", Email: "ana@example.com", Password: "abc12"},
		"no digit":       {Username: "ana", Email: "ana@example.com", Password: "secretpw"},
		"no letter":      {Username: "ana", Email: "ana@example.com", Password: "12345678"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, v.Struct(req))
		})
	}
}
