package titlewire

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "propertygate/internal/common/errors"
	"propertygate/internal/models"
)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		UserID:    "user-1",
		Password:  "secret",
		ServiceID: "TitleProfile",
	}
}

func testQuery() models.SearchQuery {
	return models.SearchQuery{
		Street:          "123 Main St",
		City:            "Los Angeles",
		State:           "CA",
		Zip:             "90001",
		ClientReference: "ref-1",
	}
}

func TestCreateRequest_ExtractsID(t *testing.T) {
	var gotPath string
	var gotForm map[string][]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		w.Write([]byte(`<Response><Address>123 Main St</Address><Zip>90001</Zip><RequestID>4481723</RequestID></Response>`))
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL))
	require.NoError(t, err)

	id, err := client.CreateRequest(context.Background(), testQuery())
	require.NoError(t, err)

	assert.Equal(t, "/CreateService", gotPath)
	assert.Equal(t, "4481723", id)
	assert.Equal(t, "user-1", gotForm["userID"][0])
	assert.Equal(t, "TitleProfile", gotForm["serviceType"][0])
	assert.Equal(t, "123 Main St", gotForm["address"][0])
}

func TestCreateRequest_SkipsAddressAndEchoFields(t *testing.T) {
	// The zip echo and the street number are both numeric leaves; neither
	// may win over the actual request number.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<Response><ZipCode>90001</ZipCode><StreetNumber>123</StreetNumber><TrackingNumber>991</TrackingNumber></Response>`))
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL))
	require.NoError(t, err)

	id, err := client.CreateRequest(context.Background(), testQuery())
	require.NoError(t, err)
	assert.Equal(t, "991", id)
}

func TestCreateRequest_NoIDIsParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<Response><Message>queued</Message></Response>`))
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL))
	require.NoError(t, err)

	_, err = client.CreateRequest(context.Background(), testQuery())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParse))
}

func TestCreateRequest_ProviderErrorText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<Response><Error>invalid service type</Error></Response>`))
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL))
	require.NoError(t, err)

	_, err = client.CreateRequest(context.Background(), testQuery())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeUpstream))
	assert.Contains(t, err.Error(), "create request rejected")
}

func TestCheckStatus(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		wantComplete bool
		wantStatus   string
	}{
		{
			"in process",
			`<RequestSummary><Status>In Process</Status></RequestSummary>`,
			false, "In Process",
		},
		{
			"complete",
			`<RequestSummary><Status>Complete</Status></RequestSummary>`,
			true, "Complete",
		},
		{
			"nested complete",
			`<RequestSummaries><RequestSummary><Status>Request Complete</Status></RequestSummary></RequestSummaries>`,
			true, "Request Complete",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client, err := NewClient(testConfig(srv.URL))
			require.NoError(t, err)

			complete, status, err := client.CheckStatus(context.Background(), "4481723")
			require.NoError(t, err)
			assert.Equal(t, tt.wantComplete, complete)
			assert.Equal(t, tt.wantStatus, status)
		})
	}
}

func TestFetchResult(t *testing.T) {
	var gotForm map[string][]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		w.Write([]byte(`<Result><Property><APN>6327-030-021</APN><LegalDescription>TRACT 9502 LOT 7</LegalDescription></Property></Result>`))
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL))
	require.NoError(t, err)

	tree, err := client.FetchResult(context.Background(), "4481723")
	require.NoError(t, err)

	assert.Equal(t, "4481723", gotForm["requestID"][0])
	result := tree["Result"].(map[string]interface{})
	property := result["Property"].(map[string]interface{})
	assert.Equal(t, "6327-030-021", property["APN"])
}

func TestCall_ServerErrorIsUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL))
	require.NoError(t, err)

	_, _, err = client.CheckStatus(context.Background(), "4481723")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeUpstream))
}

func TestCall_MalformedXMLIsParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"xml"}`))
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL))
	require.NoError(t, err)

	_, _, err = client.CheckStatus(context.Background(), "4481723")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParse))
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{UserID: "u", Password: "p", ServiceID: "s"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))

	_, err = NewClient(Config{BaseURL: "https://example.com", ServiceID: "s"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))

	_, err = NewClient(Config{BaseURL: "https://example.com", UserID: "u", Password: "p"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
}
