package htmlpage

import (
	"bytes"
	"encoding/base64"
	"io"
	"regexp"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var chunkPattern = regexp.MustCompile(`statpack\.chunk\("([^"]*)"\)`)

// decodeChunks extracts and decompresses every embedded chunk from a page.
func decodeChunks(t *testing.T, page string) [][]byte {
	t.Helper()
	var chunks [][]byte
	for _, m := range chunkPattern.FindAllStringSubmatch(page, -1) {
		compressed, err := base64.StdEncoding.DecodeString(m[1])
		require.NoError(t, err)
		gz, err := gzip.NewReader(bytes.NewReader(compressed))
		require.NoError(t, err)
		data, err := io.ReadAll(gz)
		require.NoError(t, err)
		require.NoError(t, gz.Close())
		chunks = append(chunks, data)
	}
	return chunks
}

func TestWritePageRoundTrip(t *testing.T) {
	payload := strings.Repeat(`{"metric":12345},`, 500)
	e := &Embedder{Title: "Metrics", ChunkSize: 1024}

	var page bytes.Buffer
	require.NoError(t, e.WritePage(&page, strings.NewReader(payload)))

	var joined bytes.Buffer
	for _, chunk := range decodeChunks(t, page.String()) {
		assert.LessOrEqual(t, len(chunk), 1024, "chunk exceeds the configured size")
		joined.Write(chunk)
	}
	assert.Equal(t, payload, joined.String())
}

func TestWritePageStructure(t *testing.T) {
	e := &Embedder{Title: "A <scary> & title"}
	var page bytes.Buffer
	require.NoError(t, e.WritePage(&page, strings.NewReader(`{"a":1}`)))

	html := page.String()
	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
	assert.Contains(t, html, "A &lt;scary&gt; &amp; title", "title must be escaped")
	assert.NotContains(t, html, "<scary>")
	assert.Contains(t, html, "DecompressionStream")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(html), "</html>"))
}

func TestWritePageEmptyPayload(t *testing.T) {
	e := &Embedder{Title: "Empty"}
	var page bytes.Buffer
	require.NoError(t, e.WritePage(&page, strings.NewReader("")))

	assert.Empty(t, decodeChunks(t, page.String()))
}

func TestWritePageDefaultChunkSize(t *testing.T) {
	payload := strings.Repeat("x", DefaultChunkSize+10)
	e := &Embedder{Title: "Big"}
	var page bytes.Buffer
	require.NoError(t, e.WritePage(&page, strings.NewReader(payload)))

	chunks := decodeChunks(t, page.String())
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], DefaultChunkSize)
	assert.Len(t, chunks[1], 10)
}

// shortReader returns data in tiny reads to make sure chunk filling uses
// io.ReadFull rather than a single Read.
type shortReader struct {
	data []byte
}

func (r *shortReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p[:min(3, len(p))], r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestWritePageShortReads(t *testing.T) {
	payload := strings.Repeat("abc", 100)
	e := &Embedder{Title: "Short", ChunkSize: 64}
	var page bytes.Buffer
	require.NoError(t, e.WritePage(&page, &shortReader{data: []byte(payload)}))

	var joined bytes.Buffer
	for _, chunk := range decodeChunks(t, page.String()) {
		joined.Write(chunk)
	}
	assert.Equal(t, payload, joined.String())
}
