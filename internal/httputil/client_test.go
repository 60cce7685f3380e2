package httputil

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func get(t *testing.T, c HTTPClient, url string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	return c.Do(req)
}

func TestStandardClient_Wraps(t *testing.T) {
	customClient := &http.Client{}
	client := NewStandardClient(customClient)

	if client.Client != customClient {
		t.Error("expected custom client to be wrapped")
	}
}

func TestStandardClient_DefaultTimeout(t *testing.T) {
	client := NewStandardClient(nil)
	if client.Timeout != DefaultTimeout {
		t.Errorf("got timeout %v, want %v", client.Timeout, DefaultTimeout)
	}
}

func TestMockHTTPClient_QueuedResponses(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.AddResponse(http.StatusOK, "first")
	mock.AddResponse(http.StatusAccepted, "second")
	mock.AddResponse(http.StatusNoContent, "third")

	resp1, _ := get(t, mock, "http://example.com/1")
	body1, _ := io.ReadAll(resp1.Body)
	resp1.Body.Close()
	if string(body1) != "first" {
		t.Errorf("first response: got %q, want 'first'", string(body1))
	}

	resp2, _ := get(t, mock, "http://example.com/2")
	body2, _ := io.ReadAll(resp2.Body)
	resp2.Body.Close()
	if string(body2) != "second" {
		t.Errorf("second response: got %q, want 'second'", string(body2))
	}

	resp3, _ := get(t, mock, "http://example.com/3")
	if resp3.StatusCode != http.StatusNoContent {
		t.Errorf("third response: got status %d, want %d", resp3.StatusCode, http.StatusNoContent)
	}
	resp3.Body.Close()

	if mock.RequestCount() != 3 {
		t.Errorf("got %d requests, want 3", mock.RequestCount())
	}
}

func TestMockHTTPClient_PathResponses(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.AddResponse(http.StatusTeapot, "queued")
	mock.SetPathResponse("/a", http.StatusOK, "alpha")
	mock.SetPathError("/b", errors.New("connection refused"))

	for i := 0; i < 2; i++ {
		resp, err := get(t, mock, "http://example.com/a?lastN=10")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if string(body) != "alpha" {
			t.Errorf("got %q, want alpha", string(body))
		}
	}

	if _, err := get(t, mock, "http://example.com/b"); err == nil {
		t.Error("expected path error")
	}

	resp, _ := get(t, mock, "http://example.com/c")
	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("unmatched path should fall back to queue, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestMockHTTPClient_AddErrorResponse(t *testing.T) {
	mock := NewMockHTTPClient()
	expectedErr := errors.New("connection refused")
	mock.AddErrorResponse(expectedErr)

	_, err := get(t, mock, "http://example.com/api")
	if err != expectedErr {
		t.Errorf("got error %v, want %v", err, expectedErr)
	}
}

func TestMockHTTPClient_DefaultError(t *testing.T) {
	mock := NewMockHTTPClient()
	expectedErr := errors.New("network error")
	mock.DefaultError = expectedErr

	_, err := get(t, mock, "http://example.com/api")
	if err != expectedErr {
		t.Errorf("got error %v, want %v", err, expectedErr)
	}
}

func TestMockHTTPClient_DoFunc(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.DoFunc = func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusTeapot,
			Body:       io.NopCloser(strings.NewReader("custom")),
			Request:    req,
		}, nil
	}

	resp, _ := get(t, mock, "http://example.com/api")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("got status %d, want %d", resp.StatusCode, http.StatusTeapot)
	}
}

func TestMockHTTPClient_GetRequest(t *testing.T) {
	mock := NewMockHTTPClient()
	get(t, mock, "http://example.com/first")
	get(t, mock, "http://example.com/second")

	req0 := mock.GetRequest(0)
	if req0 == nil || !strings.Contains(req0.URL.String(), "first") {
		t.Error("GetRequest(0) should return first request")
	}

	req1 := mock.GetRequest(1)
	if req1 == nil || !strings.Contains(req1.URL.String(), "second") {
		t.Error("GetRequest(1) should return second request")
	}

	if mock.GetRequest(99) != nil {
		t.Error("GetRequest with out of bounds index should return nil")
	}
	if mock.GetRequest(-1) != nil {
		t.Error("GetRequest with negative index should return nil")
	}
}

func TestMockHTTPClient_Reset(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.AddResponse(http.StatusOK, "test")
	mock.SetPathResponse("/api", http.StatusOK, "x")
	mock.DefaultError = errors.New("error")
	get(t, mock, "http://example.com/api")
	mock.Reset()

	if len(mock.Requests) != 0 {
		t.Error("Reset should clear requests")
	}
	if len(mock.Responses) != 0 {
		t.Error("Reset should clear responses")
	}
	if mock.DefaultError != nil {
		t.Error("Reset should clear DefaultError")
	}

	resp, err := get(t, mock, "http://example.com/api")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "" {
		t.Errorf("Reset should clear path responses, got %q", string(body))
	}
}

func TestMockHTTPClient_DefaultResponse(t *testing.T) {
	mock := NewMockHTTPClient()

	resp, err := get(t, mock, "http://example.com/api")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("got status %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestStandardClient_Do(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("fiware-service") != "smart" {
			t.Errorf("expected fiware-service header, got %q", r.Header.Get("fiware-service"))
		}
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte("accepted"))
	}))
	defer server.Close()

	client := NewStandardClient(nil)
	req, err := http.NewRequest(http.MethodGet, server.URL+"/resource", nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("fiware-service", "smart")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("got status %d, want %d", resp.StatusCode, http.StatusAccepted)
	}

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "accepted" {
		t.Errorf("got body %q, want 'accepted'", string(body))
	}
}
