package vxrail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCreds = Credentials{Host: "vxm.example.com", Username: "administrator@vsphere.local", Secret: "s3cret"}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...ClientOption) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	opts = append([]ClientOption{WithBaseURL(srv.URL + APIPrefix), WithRateLimit(0)}, opts...)
	c, err := NewClient(testCreds, opts...)
	require.NoError(t, err)
	return c
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		host    string
		want    string
		wantErr bool
	}{
		{name: "bare ip", host: "10.0.0.5", want: "https://10.0.0.5/rest/vxm"},
		{name: "hostname with spaces", host: "  vxm.lab  ", want: "https://vxm.lab/rest/vxm"},
		{name: "explicit scheme and port", host: "http://127.0.0.1:8443", want: "http://127.0.0.1:8443/rest/vxm"},
		{name: "already has prefix", host: "https://vxm.lab/rest/vxm/", want: "https://vxm.lab/rest/vxm"},
		{name: "empty", host: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BaseURL(tt.host)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClientDo_SendsBasicAuthAndPath(t *testing.T) {
	var gotPath, gotUser, gotPass string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		fmt.Fprint(w, `{"health":"Healthy"}`)
	})

	body, err := c.Do(context.Background(), Get(PathSystem))
	require.NoError(t, err)

	assert.Equal(t, "/rest/vxm/v3/system", gotPath)
	assert.Equal(t, testCreds.Username, gotUser)
	assert.Equal(t, testCreds.Secret, gotPass)
	assert.JSONEq(t, `{"health":"Healthy"}`, string(body))
}

func TestClientDo_PostBody(t *testing.T) {
	var got map[string]any
	var contentType string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&got)
		fmt.Fprint(w, `{"request_id":"abc"}`)
	})

	_, err := c.Do(context.Background(), Post(PathSystemPrecheck, map[string]string{"profile": "STANDARD"}))
	require.NoError(t, err)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "STANDARD", got["profile"])
}

func TestClientDo_StatusClassification(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrUnauthorized},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusInternalServerError, ErrUnreachable},
		{http.StatusServiceUnavailable, ErrUnreachable},
		{http.StatusGatewayTimeout, ErrTimedOut},
		{http.StatusBadRequest, ErrRejected},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, `{"message":"nope"}`)
			})

			_, err := c.Do(context.Background(), Get(PathHosts))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, "/v7/hosts", apiErr.Path)
		})
	}
}

func TestClientDo_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "html", body: "<html>login</html>"},
		{name: "empty", body: ""},
		{name: "truncated", body: `{"health":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			})
			_, err := c.Do(context.Background(), Get(PathSystem))
			assert.ErrorIs(t, err, ErrMalformed)
			assert.Equal(t, "malformed", Class(err))
		})
	}
}

func TestClientDo_TimedOut(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, WithTimeout(50*time.Millisecond))

	_, err := c.Do(context.Background(), Get(PathSystem))
	assert.ErrorIs(t, err, ErrTimedOut)
	assert.True(t, IsRetryable(err))
}

func TestClientDo_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := NewClient(testCreds, WithBaseURL(url+APIPrefix), WithRateLimit(0))
	require.NoError(t, err)

	_, err = c.Do(context.Background(), Get(PathSystem))
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.True(t, IsRetryable(err))
}

func TestClientDo_CallerCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.Do(ctx, Get(PathSystem))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrUnreachable)
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
	errs  []error
}

func (o *recordingObserver) ObserveCall(call Call, err error, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, call.String())
	o.errs = append(o.errs, err)
}

func TestClientDo_NotifiesObserver(t *testing.T) {
	obs := &recordingObserver{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/rest/vxm/v1/disks" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `[]`)
	}, WithObserver(obs))

	_, _ = c.Do(context.Background(), Get(PathHosts))
	_, _ = c.Do(context.Background(), Get(PathDisks))

	require.Len(t, obs.calls, 2)
	assert.Equal(t, "GET /v7/hosts", obs.calls[0])
	assert.NoError(t, obs.errs[0])
	assert.ErrorIs(t, obs.errs[1], ErrNotFound)
}

func TestGetJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"version":"8.0.210","health":"Healthy","cluster_info":{"cluster_name":"vxrail-cl01"},"unexpected":true}`)
	})

	var info SystemInfo
	require.NoError(t, c.GetJSON(context.Background(), PathSystem, &info))
	assert.Equal(t, "8.0.210", info.Version)
	require.NotNil(t, info.ClusterInfo)
	assert.Equal(t, "vxrail-cl01", info.ClusterInfo.ClusterName)
	assert.Nil(t, info.Network)
}

func TestCredentials_NeverExposeSecret(t *testing.T) {
	assert.NotContains(t, testCreds.String(), "s3cret")
	assert.NotContains(t, fmt.Sprintf("%v %+v %#v", testCreds, testCreds, testCreds), "s3cret")

	data, err := json.Marshal(testCreds)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "s3cret")
}

func TestDisk_SerialAndCapacity(t *testing.T) {
	var disks []Disk
	require.NoError(t, json.Unmarshal([]byte(`[
		{"sn":"SN1","capacity":1920383410176},
		{"serial_number":"SN2","capacity":"1.75 TB"},
		{"sn":"SN3"}
	]`), &disks))

	assert.Equal(t, "SN1", disks[0].Serial())
	assert.Equal(t, "SN2", disks[1].Serial())

	v, ok := disks[0].CapacityValue()
	assert.True(t, ok)
	assert.Equal(t, float64(1920383410176), v)

	_, ok = disks[1].CapacityValue()
	assert.False(t, ok)
	_, ok = disks[2].CapacityValue()
	assert.False(t, ok)
}
