package usgs

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/quake-risk-service/internal/domain"
	"github.com/couchcryptid/quake-risk-service/internal/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResponse = `{
  "type": "FeatureCollection",
  "features": [
    {"id": "us7000abcd", "properties": {"mag": 5.4, "place": "12 km SW of Calatagan, Philippines", "time": 1714139400000, "url": "https://earthquake.usgs.gov/earthquakes/eventpage/us7000abcd", "felt": 12, "tsunami": 0, "magType": "mww"}, "geometry": {"coordinates": [120.55, 13.79, 33.2]}},
    {"id": "us7000efgh", "properties": {"mag": 4.6, "place": "Mindanao", "time": 1714125000000, "tsunami": 1, "magType": "mb"}, "geometry": {"coordinates": [126.1, 7.2]}},
    {"id": "us7000bad", "properties": {"mag": null, "time": 1714125000000}, "geometry": {"coordinates": [126.1, 7.2, 10]}}
  ]
}`

var (
	start = time.Date(2024, time.April, 26, 0, 0, 0, 0, time.UTC)
	end   = start.Add(24 * time.Hour)
)

func testClient(baseURL string) *Client {
	return NewClient(baseURL, 5*time.Second, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClient_Fetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fdsnws/event/1/query", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "geojson", q.Get("format"))
		assert.Equal(t, "2024-04-26T00:00:00Z", q.Get("starttime"))
		assert.Equal(t, "2024-04-27T00:00:00Z", q.Get("endtime"))
		assert.Equal(t, "4.5", q.Get("minmagnitude"))
		assert.Equal(t, "4", q.Get("minlatitude"))
		assert.Equal(t, "127", q.Get("maxlongitude"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	events, dropped, err := testClient(srv.URL).Fetch(context.Background(), domain.Query{
		Start:        start,
		End:          end,
		MinMagnitude: 4.5,
		Region:       &geo.BoundingBox{MinLat: 4, MaxLat: 21, MinLon: 116, MaxLon: 127},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)
	require.Len(t, events, 2)

	first := events[0]
	assert.Equal(t, "usgs_us7000abcd", first.ID)
	assert.Equal(t, domain.SourceUSGS, first.Source)
	assert.InDelta(t, 13.79, first.Latitude, 1e-9)
	assert.InDelta(t, 33.2, first.DepthKm, 1e-9)
	require.NotNil(t, first.Felt)
	assert.Equal(t, 12, *first.Felt)

	assert.InDelta(t, domain.DefaultDepthKm, events[1].DepthKm, 1e-9)
	assert.True(t, events[1].Tsunami)
}

func TestClient_Fetch_WrappedRegionFilteredLocally(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("minlongitude"))
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	events, _, err := testClient(srv.URL).Fetch(context.Background(), domain.Query{
		Start:  start,
		End:    end,
		Region: &geo.BoundingBox{MinLat: -60, MaxLat: 60, MinLon: 170, MaxLon: -170},
	})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestClient_Fetch_NoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	events, dropped, err := testClient(srv.URL).Fetch(context.Background(), domain.Query{Start: start, End: end})
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Zero(t, dropped)
}

func TestClient_Fetch_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad starttime"))
	}))
	defer srv.Close()

	_, _, err := testClient(srv.URL).Fetch(context.Background(), domain.Query{Start: start, End: end})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestClient_Fetch_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	_, _, err := testClient(srv.URL).Fetch(context.Background(), domain.Query{Start: start, End: end})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode usgs response")
}

func TestClient_Name(t *testing.T) {
	assert.Equal(t, domain.SourceUSGS, testClient("").Name())
}
