package session

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"secondhand-race/internal/components/telemetry"
	"secondhand-race/internal/config"
	"secondhand-race/lib/cookieutil"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/http2"
	"pgregory.net/rapid"
)

type countingFactory struct {
	built atomic.Int32
	// failures is how many round trips of each built transport fail with GOAWAY
	failures func(n int32) int32
}

type flakyTransport struct {
	*http.Transport
	remaining atomic.Int32
}

func (t *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.remaining.Add(-1) >= 0 {
		return nil, http2.GoAwayError{ErrCode: http2.ErrCodeNo, DebugData: "graceful"}
	}
	return t.Transport.RoundTrip(req)
}

func (f *countingFactory) build(config.Config) (Transport, error) {
	n := f.built.Add(1)
	t := &flakyTransport{Transport: &http.Transport{}}
	if f.failures != nil {
		t.remaining.Store(f.failures(n))
	}
	return t, nil
}

func newTestSession(t *testing.T, srv *httptest.Server, mutate func(*config.Options), factory *countingFactory) (*Session, *telemetry.Recorder) {
	t.Helper()
	opts := config.Options{BaseURL: srv.URL, Event: "event"}
	if mutate != nil {
		mutate(&opts)
	}
	cfg, err := config.New(opts)
	require.NoError(t, err)

	if factory == nil {
		factory = &countingFactory{}
	}
	tel := &telemetry.Recorder{}
	s, err := New(cfg, tel, WithTransportFactory(factory.build), WithRateLimit(nil))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, tel
}

func TestCookiesSurviveRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "__QXSESSION", Value: "first", Path: "/start"})
		http.Redirect(w, r, "/end", http.StatusFound)
	})
	mux.HandleFunc("/end", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "pretix_csrftoken", Value: "abc"})
		w.Write([]byte("done"))
	})
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("__QXSESSION")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(c.Value))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s, _ := newTestSession(t, srv, nil, nil)
	ctx := context.Background()

	res, err := s.Get(ctx, srv.URL+"/start", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "/end", res.FinalURL.Path)
	require.Equal(t, map[string]string{
		"__QXSESSION":      "first",
		"pretix_csrftoken": "abc",
	}, s.Cookies())
	require.Equal(t, []cookieutil.Cookie{
		{Name: "__QXSESSION", Value: "first"},
		{Name: "pretix_csrftoken", Value: "abc"},
	}, s.CookieList())

	// the cookie was scoped to /start by the server but the store ignores paths
	res, err = s.Get(ctx, srv.URL+"/echo", nil)
	require.NoError(t, err)
	require.Equal(t, "first", res.Text())
	require.Equal(t, int64(2), s.RequestCount())
}

func TestCookiesReturnCopy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "a", Value: "1"})
	}))
	defer srv.Close()

	s, _ := newTestSession(t, srv, nil, nil)
	_, err := s.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)

	cookies := s.Cookies()
	cookies["a"] = "changed"
	require.Equal(t, "1", s.Cookies()["a"])
}

func TestPostInjectsToken(t *testing.T) {
	received := make(chan map[string]string, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		received <- map[string]string{
			"token":  r.PostForm.Get(TokenField),
			"item":   r.PostForm.Get("item_12"),
			"origin": r.Header.Get("Origin"),
		}
	}))
	defer srv.Close()

	s, _ := newTestSession(t, srv, nil, nil)
	s.SetToken("session-token")
	s.SetToken("   ")
	require.Equal(t, "session-token", s.Token())

	form := map[string]string{"item_12": "1"}
	_, err := s.Post(context.Background(), srv.URL+"/cart/add", form)
	require.NoError(t, err)
	got := <-received
	require.Equal(t, "session-token", got["token"])
	require.Equal(t, "1", got["item"])
	require.Equal(t, srv.URL, got["origin"])
	require.NotContains(t, form, TokenField)

	_, err = s.Post(context.Background(), srv.URL+"/cart/add", map[string]string{
		"item_12":  "1",
		TokenField: "form-token",
	})
	require.NoError(t, err)
	got = <-received
	require.Equal(t, "form-token", got["token"])
}

func TestWithTokenProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		form := rapid.MapOf(rapid.StringMatching(`[a-z_]{1,8}`), rapid.String()).Draw(t, "form")
		token := rapid.String().Draw(t, "token")

		before := make(map[string]string, len(form))
		for k, v := range form {
			before[k] = v
		}
		out := withToken(form, token)

		require.Equal(t, before, form)
		for k, v := range form {
			require.Equal(t, v, out[k])
		}
		if _, ok := form[TokenField]; !ok {
			if token == "" {
				require.NotContains(t, out, TokenField)
			} else {
				require.Equal(t, token, out[TokenField])
			}
		}
	})
}

func TestBackoff(t *testing.T) {
	interval := 15 * time.Second
	max := 300 * time.Second
	cases := []struct {
		errors   int
		expected time.Duration
	}{
		{0, 15 * time.Second},
		{1, 30 * time.Second},
		{2, 60 * time.Second},
		{3, 120 * time.Second},
		{4, 240 * time.Second},
		{5, 300 * time.Second},
		{21, 300 * time.Second},
		{64, 300 * time.Second},
	}
	for _, c := range cases {
		require.Equal(t, c.expected, backoff(c.errors, interval, max), "errors=%d", c.errors)
	}
}

func TestErrorCounter(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	s, _ := newTestSession(t, srv, nil, nil)
	require.Equal(t, 15*time.Second, s.Backoff())
	s.RecordError()
	s.RecordError()
	require.Equal(t, 2, s.ConsecutiveErrors())
	require.Equal(t, 60*time.Second, s.Backoff())
	s.ResetErrors()
	require.Equal(t, 15*time.Second, s.Backoff())
}

func TestProactiveReconnect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "kept", Value: "yes"})
	}))
	defer srv.Close()

	factory := &countingFactory{}
	s, tel := newTestSession(t, srv, func(o *config.Options) { o.ReconnectEvery = 2 }, factory)
	s.SetToken("tok")

	for i := 0; i < 5; i++ {
		_, err := s.Get(context.Background(), srv.URL, nil)
		require.NoError(t, err)
	}

	// initial pool, then before request 3 and before request 5
	require.Equal(t, int32(3), factory.built.Load())
	require.Len(t, tel.Find(telemetry.LevelWarning, report_session_reconnect), 2)
	require.Equal(t, "tok", s.Token())
	require.Equal(t, "yes", s.Cookies()["kept"])
	require.Equal(t, int64(5), s.RequestCount())
	require.Equal(t, int64(2), s.Reconnects())
}

func TestGoAwayRetriesOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	factory := &countingFactory{failures: func(n int32) int32 {
		if n == 1 {
			return 1
		}
		return 0
	}}
	s, _ := newTestSession(t, srv, nil, factory)

	res, err := s.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	require.Equal(t, "ok", res.Text())
	require.Equal(t, int32(2), factory.built.Load())
}

func TestGoAwayTwiceFails(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	factory := &countingFactory{failures: func(int32) int32 { return 1 }}
	s, _ := newTestSession(t, srv, nil, factory)

	_, err := s.Get(context.Background(), srv.URL, nil)
	require.ErrorIs(t, err, ErrConnectionTerminated)
	require.Equal(t, int32(2), factory.built.Load())
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	s, _ := newTestSession(t, srv, nil, nil)
	srv.Close()

	_, err := s.Get(context.Background(), srv.URL, nil)
	require.ErrorIs(t, err, ErrRequestFailed)
	require.False(t, errors.Is(err, ErrConnectionTerminated))
}

func TestDecodesAndMeasures(t *testing.T) {
	var compressed bytes.Buffer
	gz := gzip.NewWriter(&compressed)
	_, err := gz.Write([]byte("<html>hello</html>"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("plain") != "" {
			w.WriteHeader(http.StatusTeapot)
			w.Write([]byte("plain"))
			return
		}
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(compressed.Bytes())
	}))
	defer srv.Close()

	s, _ := newTestSession(t, srv, nil, nil)

	res, err := s.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	require.Equal(t, "<html>hello</html>", res.Text())
	require.Equal(t, "gzip", res.Metrics.ContentEncoding)
	require.Equal(t, len("<html>hello</html>"), res.Metrics.ContentLength)
	require.LessOrEqual(t, res.Metrics.TTFB, res.Metrics.TTLB)

	res, err = s.Get(context.Background(), srv.URL, map[string][]string{"plain": {"1"}})
	require.NoError(t, err)
	require.Equal(t, http.StatusTeapot, res.StatusCode)
	require.Equal(t, http.StatusTeapot, res.Metrics.StatusCode)
	require.Equal(t, "none", res.Metrics.ContentEncoding)
}

func TestExportNetscape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "__QXSESSION", Value: "v"})
	}))
	defer srv.Close()

	s, _ := newTestSession(t, srv, nil, nil)
	_, err := s.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, s.ExportNetscape(&out))
	require.Contains(t, out.String(), "127.0.0.1\tTRUE\t/\tTRUE\t0\t__QXSESSION\tv\n")
}

func TestCloseIsIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	s, _ := newTestSession(t, srv, nil, nil)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
