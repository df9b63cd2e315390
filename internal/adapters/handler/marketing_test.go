package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"crm-whatsapp/internal/core/domain"
)

const (
	orgUUID     = "7f1c8a9e-3c2b-4d5e-9f10-111213141516"
	projectUUID = "a2b3c4d5-e6f7-4819-8a2b-3c4d5e6f7081"
)

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// ============================================================================
// Conversions
// ============================================================================

func TestSendMetaConversion_Skipped(t *testing.T) {
	s := newTestServer(t, "", "")
	s.conversions.On("SendMeta", mock.Anything,
		mock.MatchedBy(func(req *domain.ConversionRequest) bool {
			return req.OrganizationID == orgUUID && req.EventType == domain.EventLead
		}),
		domain.MetaCredentials{},
	).Return(&domain.ConversionResult{
		Status:      domain.StatusSkipped,
		Reason:      "missing_meta_credentials",
		PayloadHash: "abc",
	}, nil)

	rec := s.do(http.MethodPost, "/api/conversions/meta",
		`{"organizationId":"`+orgUUID+`","projectId":"`+projectUUID+`","eventType":"lead"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.JSONEq(t, `{"status":"skipped","reason":"missing_meta_credentials","payload_hash":"abc"}`, string(env.Data))
}

func TestSendGoogleConversion_PassesCredentials(t *testing.T) {
	s := newTestServer(t, "", "")
	creds := domain.GoogleCredentials{
		CustomerID:         "1234567890",
		ConversionActionID: "55",
		DeveloperToken:     "dev",
		AccessToken:        "oauth",
	}
	s.conversions.On("SendGoogle", mock.Anything, mock.Anything, creds).
		Return(&domain.ConversionResult{Status: domain.StatusSent, Response: json.RawMessage(`{"results":[{}]}`)}, nil)

	rec := s.do(http.MethodPost, "/api/conversions/google", `{
		"organizationId":"`+orgUUID+`","projectId":"`+projectUUID+`","eventType":"sale",
		"gclid":"g-1","customerId":"1234567890","conversionActionId":"55","developerToken":"dev","accessToken":"oauth"
	}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"sent"`)
}

func TestSendMetaConversion_InvalidPayload(t *testing.T) {
	s := newTestServer(t, "", "")

	rec := s.do(http.MethodPost, "/api/conversions/meta", `{"organizationId":"x","eventType":"click"}`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	var fields map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &fields))
	assert.Contains(t, fields, "organizationId")
	assert.Contains(t, fields, "projectId")
	assert.Contains(t, fields, "eventType")
}

func TestInternalToken(t *testing.T) {
	s := newTestServer(t, "", "internal-secret")
	body := `{"organizationId":"` + orgUUID + `","projectId":"` + projectUUID + `","eventType":"lead"}`

	rec := s.do(http.MethodPost, "/api/conversions/meta", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/api/conversions/meta", body, bearer("wrong"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	s.conversions.On("SendMeta", mock.Anything, mock.Anything, mock.Anything).
		Return(&domain.ConversionResult{Status: domain.StatusSkipped}, nil).Once()
	rec = s.do(http.MethodPost, "/api/conversions/meta", body, bearer("internal-secret"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

// ============================================================================
// Ads ingest
// ============================================================================

const ingestBody = `{
	"organizationId":"` + orgUUID + `","projectId":"` + projectUUID + `",
	"accounts":[{"external_id":"A1"}],
	"campaigns":[{"external_id":"C1","account_external_id":"A1"}],
	"metrics":[{"date":"2024-05-01","account_external_id":"A1","campaign_external_id":"C1","impressions":10}]
}`

func TestIngestAds_Created(t *testing.T) {
	s := newTestServer(t, "", "")
	s.ads.On("Ingest", mock.Anything, mock.MatchedBy(func(b *domain.AdsIngestBatch) bool {
		return b.Platform == domain.PlatformMeta && len(b.Accounts) == 1 && len(b.Metrics) == 1
	})).Return(&domain.IngestCounts{Accounts: 1, Campaigns: 1, Metrics: 1}, nil)

	rec := s.do(http.MethodPost, "/api/ads/meta/ingest", ingestBody, nil)

	assert.Equal(t, http.StatusCreated, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, http.StatusCreated, env.Code)
	assert.JSONEq(t, `{"accounts":1,"campaigns":1,"adSets":0,"creatives":0,"metrics":1}`, string(env.Data))
}

func TestIngestAds_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"unresolved reference", &domain.UnresolvedReferenceError{Entity: "creative", Parent: "campaign", ExternalID: "C404"}, http.StatusBadRequest},
		{"storage failure", errors.New("commit ads ingest: deadlock"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, "", "")
			s.ads.On("Ingest", mock.Anything, mock.Anything).Return(nil, tt.err)

			rec := s.do(http.MethodPost, "/api/ads/meta/ingest", ingestBody, nil)

			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestIngestAds_UnknownPlatform(t *testing.T) {
	s := newTestServer(t, "", "")

	rec := s.do(http.MethodPost, "/api/ads/tiktok/ingest", ingestBody, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"platform"`)
}
