package session

import (
	"bytes"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
)

const page = "<html><body>Currently there are no tickets available</body></html>"

func encode(t *testing.T, write func(buf *bytes.Buffer)) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	write(&buf)
	return &buf
}

func TestReadBodyEncodings(t *testing.T) {
	brotliBody := encode(t, func(buf *bytes.Buffer) {
		w := brotli.NewWriter(buf)
		w.Write([]byte(page))
		require.NoError(t, w.Close())
	})
	zstdBody := encode(t, func(buf *bytes.Buffer) {
		w, err := zstd.NewWriter(buf)
		require.NoError(t, err)
		w.Write([]byte(page))
		require.NoError(t, w.Close())
	})
	zlibBody := encode(t, func(buf *bytes.Buffer) {
		w := zlib.NewWriter(buf)
		w.Write([]byte(page))
		require.NoError(t, w.Close())
	})
	rawDeflate := encode(t, func(buf *bytes.Buffer) {
		w, err := flate.NewWriter(buf, flate.DefaultCompression)
		require.NoError(t, err)
		w.Write([]byte(page))
		require.NoError(t, w.Close())
	})

	cases := map[string]*bytes.Buffer{
		"":         bytes.NewBufferString(page),
		"identity": bytes.NewBufferString(page),
		"br":       brotliBody,
		"zstd":     zstdBody,
		"deflate":  zlibBody,
		" Deflate": rawDeflate,
	}
	for encoding, body := range cases {
		out, err := readBody(encoding, body)
		require.NoError(t, err, encoding)
		require.Equal(t, page, string(out), encoding)
	}

	_, err := readBody("compress", strings.NewReader(page))
	require.Error(t, err)
}
