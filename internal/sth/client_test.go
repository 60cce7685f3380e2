package sth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sensors.dashboard/internal/httputil"
	"github.com/banshee-data/sensors.dashboard/internal/monitoring"
	"github.com/banshee-data/sensors.dashboard/internal/timeutil"
)

const humidityPath = "/STH/v1/contextEntities/type/DHTSensor/id/urn:ngsi-ld:DHT:001/attributes/humidity"

var humidityQuery = Query{
	EntityType: "DHTSensor",
	EntityID:   "urn:ngsi-ld:DHT:001",
	Attribute:  "humidity",
	LastN:      10,
}

const validBody = `{
  "contextResponses": [{
    "contextElement": {
      "attributes": [{
        "name": "humidity",
        "values": [
          {"_id": "a", "attrType": "Number", "attrValue": "55.2", "recvTime": "2024-01-01T12:00:00.000Z"},
          {"_id": "b", "attrType": "Number", "attrValue": 56, "recvTime": "2024-01-01T12:00:05.000Z"}
        ]
      }],
      "id": "urn:ngsi-ld:DHT:001",
      "isPattern": false,
      "type": "DHTSensor"
    },
    "statusCode": {"code": "200", "reasonPhrase": "OK"}
  }]
}`

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	monitoring.SetOutput(io.Discard)
	m.Run()
}

func TestClient_URL(t *testing.T) {
	c := NewClient(nil, "http://52.137.83.133:8666/")
	assert.Equal(t,
		"http://52.137.83.133:8666"+humidityPath+"?lastN=10",
		c.URL(humidityQuery))

	q := humidityQuery
	q.EntityID = "a b/c"
	assert.Contains(t, c.URL(q), "/id/a%20b%2Fc/")
}

func TestClient_FetchSendsTenancyHeaders(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.SetPathResponse(humidityPath, http.StatusOK, validBody)

	c := NewClient(mock, "http://sth.test:8666")
	got := c.Fetch(context.Background(), humidityQuery)

	want := []Sample{
		{AttrValue: "55.2", RecvTime: "2024-01-01T12:00:00.000Z"},
		{AttrValue: "56", RecvTime: "2024-01-01T12:00:05.000Z"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("samples mismatch (-want +got):\n%s", diff)
	}

	require.Equal(t, 1, mock.RequestCount())
	req := mock.GetRequest(0)
	assert.Equal(t, "smart", req.Header.Get(HeaderService))
	assert.Equal(t, "/", req.Header.Get(HeaderServicePath))
	assert.Equal(t, "10", req.URL.Query().Get("lastN"))
	assert.Equal(t, http.MethodGet, req.Method)
}

func TestClient_FetchFailuresYieldEmpty(t *testing.T) {
	cases := []struct {
		name  string
		setup func(m *httputil.MockHTTPClient)
	}{
		{"non-200", func(m *httputil.MockHTTPClient) {
			m.SetPathResponse(humidityPath, http.StatusInternalServerError, `{"error":"boom"}`)
		}},
		{"transport error", func(m *httputil.MockHTTPClient) {
			m.SetPathError(humidityPath, errors.New("connection refused"))
		}},
		{"invalid json", func(m *httputil.MockHTTPClient) {
			m.SetPathResponse(humidityPath, http.StatusOK, `{"contextResponses": [`)
		}},
		{"missing contextResponses", func(m *httputil.MockHTTPClient) {
			m.SetPathResponse(humidityPath, http.StatusOK, `{}`)
		}},
		{"empty contextResponses", func(m *httputil.MockHTTPClient) {
			m.SetPathResponse(humidityPath, http.StatusOK, `{"contextResponses": []}`)
		}},
		{"values not an array", func(m *httputil.MockHTTPClient) {
			m.SetPathResponse(humidityPath, http.StatusOK,
				`{"contextResponses":[{"contextElement":{"attributes":[{"values":{}}]}}]}`)
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mock := httputil.NewMockHTTPClient()
			tc.setup(mock)
			c := NewClient(mock, "http://sth.test:8666")
			assert.Empty(t, c.Fetch(context.Background(), humidityQuery))
		})
	}
}

func TestClient_FetchHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := NewClient(nil, srv.URL)
	start := time.Now()
	assert.Empty(t, c.Fetch(ctx, humidityQuery))
	assert.Less(t, time.Since(start), time.Second)
}

func TestParseEnvelope(t *testing.T) {
	t.Run("empty values", func(t *testing.T) {
		samples, err := ParseEnvelope([]byte(
			`{"contextResponses":[{"contextElement":{"attributes":[{"values":[]}]}}]}`))
		require.NoError(t, err)
		assert.Empty(t, samples)
	})

	t.Run("drops incomplete elements", func(t *testing.T) {
		samples, err := ParseEnvelope([]byte(`{"contextResponses":[{"contextElement":{"attributes":[{"values":[
			{"attrValue":"1","recvTime":"2024-01-01T00:00:00.000Z"},
			{"attrValue":"2"},
			{"recvTime":"2024-01-01T00:00:10.000Z"}
		]}]}}]}`))
		require.NoError(t, err)
		assert.Equal(t, []Sample{{AttrValue: "1", RecvTime: "2024-01-01T00:00:00.000Z"}}, samples)
	})

	t.Run("malformed", func(t *testing.T) {
		for _, body := range []string{``, `[]`, `{"contextResponses":{}}`, `not json`} {
			_, err := ParseEnvelope([]byte(body))
			assert.ErrorIs(t, err, ErrMalformedEnvelope, "body %q", body)
		}
	})
}

func TestClient_AgainstFakeServer(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2024, 1, 1, 12, 0, 7, 0, time.UTC))
	fake := NewFakeServer(clock, 5*time.Second)
	srv := httptest.NewServer(fake.Handler())
	defer srv.Close()

	c := NewClient(httputil.NewStandardClient(srv.Client()), srv.URL)
	got := c.Fetch(context.Background(), humidityQuery)
	require.Len(t, got, 10)
	assert.Equal(t, "2024-01-01T12:00:05.000Z", got[9].RecvTime)
	assert.Equal(t, "2024-01-01T11:59:20.000Z", got[0].RecvTime)

	c.Service = "other"
	assert.Empty(t, c.Fetch(context.Background(), humidityQuery))
}
