package sth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sensors.dashboard/internal/timeutil"
)

func TestWaveform_At(t *testing.T) {
	flat := Waveform{Base: 3}
	assert.Equal(t, 3.0, flat.At(time.Now()))

	wf := Waveform{Base: 10, Amplitude: 2, Period: time.Minute}
	for s := 0; s < 120; s += 7 {
		v := wf.At(time.Unix(int64(s), 0))
		assert.GreaterOrEqual(t, v, 8.0)
		assert.LessOrEqual(t, v, 12.0)
	}
}

func TestFakeServer_SamplesOverlapAcrossQueries(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	f := NewFakeServer(clock, 5*time.Second)
	wf := DefaultWaveforms["temperature"]

	first := f.Samples(wf, 4)
	clock.Advance(10 * time.Second)
	second := f.Samples(wf, 4)

	// two steps later the windows share two samples
	assert.Equal(t, first[2:], second[:2])
	for _, s := range second {
		_, err := strconv.ParseFloat(s.AttrValue, 64)
		assert.NoError(t, err)
	}
}

func TestFakeServer_Handler(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	h := NewFakeServer(clock, 0).Handler()

	get := func(path, service string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if service != "" {
			req.Header.Set(HeaderService, service)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := get("/STH/v1/contextEntities/type/Lamp/id/urn:ngsi-ld:Lamp:003/attributes/luminosity?lastN=3", "smart")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	samples, err := ParseEnvelope(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Len(t, samples, 3)

	var env fakeEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "urn:ngsi-ld:Lamp:003", env.ContextResponses[0].ContextElement.ID)
	assert.Equal(t, "Lamp", env.ContextResponses[0].ContextElement.Type)

	rec = get("/STH/v1/contextEntities/type/Lamp/id/x/attributes/luminosity", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get("/STH/v1/contextEntities/type/Lamp/id/x/attributes/pressure", "smart")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// invalid lastN falls back to 10
	rec = get("/STH/v1/contextEntities/type/Lamp/id/x/attributes/voltage?lastN=abc", "smart")
	samples, err = ParseEnvelope(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Len(t, samples, 10)
}
