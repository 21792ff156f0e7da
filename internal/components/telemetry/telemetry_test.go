package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

func TestScopedAPI(t *testing.T) {
	rec := &Recorder{}
	tel := NewScopedAPI("session", rec)

	tel.ReportBroken("get", "boom")
	tel.ReportWarning("reconnect", 950)
	tel.ReportInfo("request", "status", 200)
	tel.ReportCount("polls", 3)

	require.Len(t, rec.Find(LevelBroken, "session: get"), 1)
	require.Len(t, rec.Find(LevelWarning, "reconnect"), 1)
	require.Len(t, rec.Find(LevelCount, "session: polls"), 1)

	info := rec.Find(LevelInfo, "request")
	require.Len(t, info, 1)
	require.Equal(t, []any{"component", "session", "status", 200}, info[0].Params)
}

func TestInstrumentResty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	rec := &Recorder{}
	client := resty.New()
	InstrumentResty(client, rec)

	res, err := client.R().Get(srv.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusTeapot, res.StatusCode())

	require.Len(t, rec.Find(LevelDebug, report_resty_request), 1)
	responses := rec.Find(LevelDebug, report_resty_response)
	require.Len(t, responses, 1)
	require.Equal(t, uint64(1), responses[0].Params[0])
}
