package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNativeProbeStatus(t *testing.T) {
	var method string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	prober := &NativeProber{}
	outcomes, err := prober.ProbeBatch(context.Background(), []string{server.URL + "/"}, Options{Deadline: 5 * time.Second})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)

	outcome := outcomes[server.URL+"/"]
	require.Equal(t, http.MethodHead, method)
	require.Equal(t, http.StatusOK, outcome.ResponseCode)
	require.Equal(t, 1, outcome.ConnectionCount)
	require.Positive(t, outcome.ConnectTime)
	require.Positive(t, outcome.TotalTime)
	require.Zero(t, outcome.TLSVerifyResult)
	require.False(t, outcome.HostNotFound)
}

func TestNativeProbeRedirectNotFollowed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/moved", http.StatusMovedPermanently)
	}))
	defer server.Close()

	prober := &NativeProber{}
	outcomes, err := prober.ProbeBatch(context.Background(), []string{server.URL + "/"}, Options{Deadline: 5 * time.Second})
	require.NoError(t, err)
	require.Equal(t, http.StatusMovedPermanently, outcomes[server.URL+"/"].ResponseCode)
}

func TestNativeProbeRedirectFollowed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/final" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Redirect(w, r, "/final", http.StatusFound)
	}))
	defer server.Close()

	prober := &NativeProber{}
	outcomes, err := prober.ProbeBatch(context.Background(), []string{server.URL + "/"}, Options{
		FollowRedirects: true,
		Deadline:        5 * time.Second,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, outcomes[server.URL+"/"].ResponseCode)
}

func TestNativeProbeRedirectLoop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusFound)
	}))
	defer server.Close()

	prober := &NativeProber{}
	outcomes, err := prober.ProbeBatch(context.Background(), []string{server.URL + "/"}, Options{
		FollowRedirects: true,
		Deadline:        5 * time.Second,
	})
	require.NoError(t, err)

	// The chain is cut after maxRedirects hops; the last response
	// still carries the redirect code so the URL classifies as
	// redirected rather than broken.
	require.Equal(t, http.StatusFound, outcomes[server.URL+"/"].ResponseCode)
}

func TestNativeProbeTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	deadline := 80 * time.Millisecond
	prober := &NativeProber{}
	outcomes, err := prober.ProbeBatch(context.Background(), []string{server.URL + "/"}, Options{Deadline: deadline})
	require.NoError(t, err)

	outcome := outcomes[server.URL+"/"]
	require.Zero(t, outcome.ResponseCode)
	require.Equal(t, deadline, outcome.TotalTime)
}

func TestNativeProbeBadCertificate(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	// The test server's CA is deliberately not trusted here.
	prober := &NativeProber{}
	outcomes, err := prober.ProbeBatch(context.Background(), []string{server.URL + "/"}, Options{Deadline: 5 * time.Second})
	require.NoError(t, err)

	outcome := outcomes[server.URL+"/"]
	require.Equal(t, 1, outcome.TLSVerifyResult)
	require.Zero(t, outcome.ResponseCode)
}

func TestNativeProbeConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	refusedURL := server.URL + "/"
	server.Close()

	prober := &NativeProber{}
	outcomes, err := prober.ProbeBatch(context.Background(), []string{refusedURL}, Options{Deadline: 5 * time.Second})
	require.NoError(t, err)

	// Nothing was connected, so the outcome stays all zeroes and the
	// classifier infers a dead host.
	outcome := outcomes[refusedURL]
	require.Zero(t, outcome.ResponseCode)
	require.Zero(t, outcome.ConnectionCount)
	require.Zero(t, outcome.ConnectTime)
}

func TestNativeProbeSkipsUnparseableURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	prober := &NativeProber{}
	outcomes, err := prober.ProbeBatch(context.Background(), []string{
		server.URL + "/",
		"http://bad host/with spaces",
	}, Options{Deadline: 5 * time.Second})
	require.NoError(t, err)

	// The unparseable URL is left out; the good one still resolves.
	require.Len(t, outcomes, 1)
	require.Equal(t, http.StatusOK, outcomes[server.URL+"/"].ResponseCode)
}

func TestNewProberSelection(t *testing.T) {
	native, err := New("", "", nil)
	require.NoError(t, err)
	require.IsType(t, &NativeProber{}, native)

	curl, err := New("CURL", "/usr/bin/curl", nil)
	require.NoError(t, err)
	require.IsType(t, &CurlProber{}, curl)
	require.Equal(t, "/usr/bin/curl", curl.(*CurlProber).Path)

	_, err = New("carrier-pigeon", "", nil)
	require.Error(t, err)
}
