package archive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func window() (time.Time, time.Time) {
	start, _ := time.Parse("2006-01-02", "2024-01-01")
	end, _ := time.Parse("2006-01-02", "2024-12-31")
	return start, end
}

func newTestClient(baseURL string) *Client {
	return NewClient(Config{
		BaseURL:  baseURL,
		Timezone: "Asia/Ho_Chi_Minh",
		Timeout:  5 * time.Second,
	}, zap.NewNop())
}

func TestFetchWindowRequestParameters(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		w.Write([]byte(`{"hourly":{"time":[]},"daily":{"time":[]}}`))
	}))
	defer srv.Close()

	start, end := window()
	res := newTestClient(srv.URL).FetchWindow(context.Background(), 21.0285, 105.8542, start, end)
	require.Equal(t, KindSuccess, res.Kind)

	require.Equal(t, "21.0285", got.Get("latitude"))
	require.Equal(t, "105.8542", got.Get("longitude"))
	require.Equal(t, "2024-01-01", got.Get("start_date"))
	require.Equal(t, "2024-12-31", got.Get("end_date"))
	require.Equal(t, "Asia/Ho_Chi_Minh", got.Get("timezone"))
	require.Equal(t, "celsius", got.Get("temperature_unit"))
	require.Equal(t, "ms", got.Get("wind_speed_unit"))
	require.Equal(t, "hPa", got.Get("pressure_unit"))

	hourly := strings.Split(got.Get("hourly"), ",")
	require.Equal(t, HourlyVariables, hourly)
	daily := strings.Split(got.Get("daily"), ",")
	require.Equal(t, DailyVariables, daily)
}

func TestFetchWindowDecodesPayload(t *testing.T) {
	body := `{
		"hourly": {"time": ["2024-01-01T00:00"], "temperature_2m": [21.4], "weather_code": [3]},
		"daily": {"time": ["2024-01-01"], "temperature_2m_max": [28.1], "sunrise": ["2024-01-01T06:10"]}
	}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	start, end := window()
	res := newTestClient(srv.URL).FetchWindow(context.Background(), 21, 105, start, end)

	require.Equal(t, KindSuccess, res.Kind)
	require.NotNil(t, res.Payload)
	require.Equal(t, []string{"2024-01-01T00:00"}, res.Payload.Hourly.Time)
	require.Equal(t, 21.4, *res.Payload.Hourly.Temperature[0])
	require.Equal(t, 28.1, *res.Payload.Daily.TemperatureMax[0])
	require.Equal(t, "2024-01-01T06:10", res.Payload.Daily.Sunrise[0])
}

func TestFetchWindowClassifiesStatusCodes(t *testing.T) {
	cases := []struct {
		status int
		kind   Kind
	}{
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusInternalServerError, KindServerError},
		{http.StatusBadGateway, KindServerError},
		{http.StatusServiceUnavailable, KindServerError},
		{http.StatusGatewayTimeout, KindServerError},
		{http.StatusBadRequest, KindClientError},
		{http.StatusNotFound, KindClientError},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
		}))
		start, end := window()
		res := newTestClient(srv.URL).FetchWindow(context.Background(), 21, 105, start, end)
		srv.Close()

		require.Equal(t, tc.kind, res.Kind, "status %d", tc.status)
		require.Equal(t, tc.status, res.StatusCode)
	}
}

func TestFetchWindowMalformedBodyStopsRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("garbage not json"))
	}))
	defer srv.Close()

	start, end := window()
	res := newTestClient(srv.URL).FetchWindow(context.Background(), 21, 105, start, end)
	// A 200 with an undecodable body must not classify as a client error:
	// that would drop the window and let the resume point skip past it.
	require.Equal(t, KindMalformed, res.Kind)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Error(t, res.Err)
}

func TestFetchWindowNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // nothing listening anymore

	start, end := window()
	res := newTestClient(srv.URL).FetchWindow(context.Background(), 21, 105, start, end)
	require.Equal(t, KindNetworkError, res.Kind)
	require.Error(t, res.Err)
}

func TestDoRetriesConnectionFailures(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts == 1 {
			// Kill the connection so the client sees a transport error.
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		w.Write([]byte(`{"hourly":{"time":[]},"daily":{"time":[]}}`))
	}))
	defer srv.Close()

	client := NewClient(Config{
		BaseURL:    srv.URL,
		Timezone:   "Asia/Ho_Chi_Minh",
		Timeout:    5 * time.Second,
		MaxRetries: 2,
	}, zap.NewNop())

	start, end := window()
	res := client.FetchWindow(context.Background(), 21, 105, start, end)
	require.Equal(t, KindSuccess, res.Kind)
	require.Equal(t, 2, attempts)
}

func TestDoRetriesTransientServerErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"hourly":{"time":[]},"daily":{"time":[]}}`))
	}))
	defer srv.Close()

	client := NewClient(Config{
		BaseURL:    srv.URL,
		Timezone:   "Asia/Ho_Chi_Minh",
		Timeout:    5 * time.Second,
		MaxRetries: 2,
	}, zap.NewNop())

	start, end := window()
	res := client.FetchWindow(context.Background(), 21, 105, start, end)
	require.Equal(t, KindSuccess, res.Kind)
	require.Equal(t, 2, attempts)
}

func TestDoSurfacesPersistentServerErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(Config{
		BaseURL:    srv.URL,
		Timezone:   "Asia/Ho_Chi_Minh",
		Timeout:    5 * time.Second,
		MaxRetries: 1,
	}, zap.NewNop())

	start, end := window()
	res := client.FetchWindow(context.Background(), 21, 105, start, end)
	// After the transport bound the 5xx reaches the crawl retry machine.
	require.Equal(t, KindServerError, res.Kind)
	require.Equal(t, http.StatusBadGateway, res.StatusCode)
	require.Equal(t, 2, attempts)
}
