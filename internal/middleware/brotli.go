package middleware

import (
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

// minCompressSize is the smallest response body worth compressing.
const minCompressSize = 1024

type brotliWriter struct {
	gin.ResponseWriter
	bw         *brotli.Writer
	buf        []byte
	once       sync.Once
	compressed bool
}

func (w *brotliWriter) Write(data []byte) (int, error) {
	if w.compressed {
		return w.bw.Write(data)
	}

	w.buf = append(w.buf, data...)

	if len(w.buf) >= minCompressSize {
		w.once.Do(func() {
			w.compressed = true
			w.ResponseWriter.Header().Set("Content-Encoding", "br")
			w.ResponseWriter.Header().Del("Content-Length")
		})
		_, err := w.bw.Write(w.buf)
		w.buf = w.buf[:0]
		return len(data), err
	}

	return len(data), nil
}

func (w *brotliWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// close drains anything still buffered. Bodies that never crossed the
// threshold go out uncompressed.
func (w *brotliWriter) close() {
	if len(w.buf) > 0 && !w.compressed {
		_, _ = w.ResponseWriter.Write(w.buf)
		w.buf = w.buf[:0]
	}
	if w.compressed {
		w.bw.Close()
	}
}

// Brotli compresses response bodies for clients that accept it. WebSocket
// upgrades pass through untouched: wrapping the writer breaks the handshake.
func Brotli() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") || !acceptsBrotli(c) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")

		w := &brotliWriter{
			ResponseWriter: c.Writer,
			bw:             brotli.NewWriterLevel(c.Writer, brotli.DefaultCompression),
		}
		defer w.close()

		c.Writer = w
		c.Next()
	}
}

func acceptsBrotli(c *gin.Context) bool {
	for _, enc := range strings.Split(c.GetHeader("Accept-Encoding"), ",") {
		if strings.TrimSpace(strings.ToLower(enc)) == "br" {
			return true
		}
	}
	return false
}
