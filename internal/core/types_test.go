package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSchemeOf(t *testing.T) {
	cases := []struct {
		rawURL string
		scheme string
		ok     bool
	}{
		{"https://example.com/", "https", true},
		{"HTTP://EXAMPLE.COM/", "http", true},
		{"ftp://ftp.example.com/pub/", "ftp", true},
		{"git+https://forge.example.com/repo.git", "git+https", true},
		{"svn.example.com/trunk", "", false},
		{"", "", false},
		{"just words", "", false},
	}
	for _, tc := range cases {
		scheme, ok := SchemeOf(tc.rawURL)
		require.Equal(t, tc.ok, ok, "url %q", tc.rawURL)
		require.Equal(t, tc.scheme, scheme, "url %q", tc.rawURL)
	}
}

func TestSupportedScheme(t *testing.T) {
	for _, scheme := range []string{"http", "https", "ftp", "ftps"} {
		require.True(t, SupportedScheme(scheme), scheme)
	}
	for _, scheme := range []string{"gopher", "git+https", "svn", "file", ""} {
		require.False(t, SupportedScheme(scheme), scheme)
	}
}

func TestSecureScheme(t *testing.T) {
	require.True(t, SecureScheme("https"))
	require.True(t, SecureScheme("ftps"))
	require.False(t, SecureScheme("http"))
	require.False(t, SecureScheme("ftp"))
}

func TestParseStatus(t *testing.T) {
	status, ok := ParseStatus("valid")
	require.True(t, ok)
	require.Equal(t, StatusValid, status)

	status, ok = ParseStatus("  Not_Found ")
	require.True(t, ok)
	require.Equal(t, StatusNotFound, status)

	for _, name := range []string{"", "ok", "404", "badhost"} {
		_, ok := ParseStatus(name)
		require.False(t, ok, name)
	}
}

func TestUrlStatusDescriptions(t *testing.T) {
	statuses := []UrlStatus{
		StatusUnchecked, StatusUnsupported, StatusValid, StatusRedirect,
		StatusBadHost, StatusBadCertificate, StatusNotFound,
		StatusAuthenticate, StatusTimeout, StatusTemporaryErr,
	}
	for _, status := range statuses {
		require.NotEmpty(t, status.Description(), string(status))
	}
	require.Equal(t, "Host name does not exist", StatusBadHost.Description())
	require.Equal(t, "Temporary server error", StatusTemporaryErr.Description())
}

func TestUrlStatusNeedsAttention(t *testing.T) {
	require.False(t, StatusValid.NeedsAttention())
	require.True(t, StatusNotFound.NeedsAttention())
	require.True(t, StatusUnchecked.NeedsAttention())
}

func TestCheckRunTally(t *testing.T) {
	run := &CheckRun{
		Statuses: map[string]UrlStatus{
			"https://a.example.com/": StatusValid,
			"https://b.example.com/": StatusValid,
			"https://c.example.com/": StatusNotFound,
			"https://d.example.com/": StatusBadHost,
		},
	}
	run.Tally()
	require.Equal(t, 4, run.Total)
	require.Equal(t, 2, run.Broken)
	require.Equal(t, 2, run.Counts[StatusValid])
	require.Equal(t, 1, run.Counts[StatusNotFound])
	require.Equal(t, 1, run.Counts[StatusBadHost])
}
