package hubspot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/email-validator/internal/config"
	"github.com/ignite/email-validator/internal/domain"
)

func TestUpdateContact_RequestShape(t *testing.T) {
	var (
		gotMethod, gotPath, gotAuth string
		gotBody                     map[string]map[string]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"101"}`))
	}))
	defer srv.Close()

	c := NewClient(config.HubSpotConfig{APIKey: "pat-test", BaseURL: srv.URL + "/", TimeoutSeconds: 5})
	err := c.UpdateContact(context.Background(), "101", map[string]string{"email": "a@gmail.com"})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/crm/v3/objects/contacts/101", gotPath)
	assert.Equal(t, "Bearer pat-test", gotAuth)
	assert.Equal(t, "a@gmail.com", gotBody["properties"]["email"])
}

func TestUpdateContact_ClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Property values were not valid"}`))
	}))
	defer srv.Close()

	c := NewClient(config.HubSpotConfig{APIKey: "k", BaseURL: srv.URL, TimeoutSeconds: 5})
	err := c.UpdateContact(context.Background(), "7", map[string]string{"email": "x"})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "not valid")
}

func TestUpdateContact_MissingID(t *testing.T) {
	c := NewClient(config.HubSpotConfig{BaseURL: "http://unused"})
	assert.Error(t, c.UpdateContact(context.Background(), "", nil))
}

func TestContactProperties(t *testing.T) {
	checked := time.Date(2026, 4, 2, 3, 4, 5, 0, time.UTC)

	props := ContactProperties(domain.Verdict{
		OriginalAddress: "Jo@Gmial.com",
		CurrentAddress:  "jo@gmail.com",
		WasCorrected:    true,
		Status:          domain.StatusValid,
		CheckedAt:       checked,
	})
	assert.Equal(t, map[string]string{
		PropEmail:            "jo@gmail.com",
		PropValidationStatus: "valid",
		PropRecheckNeeded:    "false",
		PropLastChecked:      "2026-04-02T03:04:05Z",
		PropOriginalEmail:    "Jo@Gmial.com",
		PropWasCorrected:     "true",
	}, props)

	props = ContactProperties(domain.Verdict{
		OriginalAddress: "a@b.com",
		CurrentAddress:  "a@b.com",
		Status:          domain.StatusUnknown,
		RecheckNeeded:   true,
		CheckedAt:       checked,
	})
	assert.Len(t, props, 4)
	assert.Equal(t, "true", props[PropRecheckNeeded])
	assert.NotContains(t, props, PropOriginalEmail)
	assert.NotContains(t, props, PropWasCorrected)
}
