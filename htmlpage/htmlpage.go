// Package htmlpage renders an encoded report stream into a standalone HTML
// page.  The stream is consumed in fixed-size chunks, each compressed and
// base64-encoded into its own script element, so the page can be produced
// without ever holding the whole payload in memory.
package htmlpage

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"io"

	"github.com/klauspost/compress/gzip"
)

// DefaultChunkSize is the chunk size used when Embedder.ChunkSize is zero.
const DefaultChunkSize = 64 * 1024

var headerTemplate = template.Must(template.New("header").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<script>
var statpack = (function () {
  var parts = [];
  function chunk(b64) {
    var raw = atob(b64);
    var buf = new Uint8Array(raw.length);
    for (var i = 0; i < raw.length; i++) buf[i] = raw.charCodeAt(i);
    parts.push(buf);
  }
  async function data() {
    var stream = new Blob(parts).stream().pipeThrough(new DecompressionStream("gzip"));
    return JSON.parse(await new Response(stream).text());
  }
  return { chunk: chunk, data: data };
})();
</script>
</head>
<body>
<h1>{{.Title}}</h1>
<div id="report"></div>
`))

const footer = `<script>
statpack.data().then(function (model) {
  document.getElementById("report").textContent = JSON.stringify(model, null, 2);
});
</script>
</body>
</html>
`

// An Embedder writes report payloads into HTML pages.
type Embedder struct {
	Title string
	// ChunkSize is the number of payload bytes per script element.
	ChunkSize int
}

func (e *Embedder) chunkSize() int {
	if e.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return e.ChunkSize
}

// WritePage streams r into w as a complete HTML page.  r is read one chunk
// at a time; nothing is buffered beyond the chunk in flight.
func (e *Embedder) WritePage(w io.Writer, r io.Reader) error {
	err := headerTemplate.Execute(w, struct{ Title string }{e.Title})
	if err != nil {
		return fmt.Errorf("htmlpage: writing header: %w", err)
	}

	buf := make([]byte, e.chunkSize())
	var compressed bytes.Buffer
	gz := gzip.NewWriter(&compressed)
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			if werr := e.writeChunk(w, gz, &compressed, buf[:n]); werr != nil {
				return werr
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return fmt.Errorf("htmlpage: reading payload: %w", err)
		}
	}

	if _, err := io.WriteString(w, footer); err != nil {
		return fmt.Errorf("htmlpage: writing footer: %w", err)
	}
	return nil
}

func (e *Embedder) writeChunk(w io.Writer, gz *gzip.Writer, compressed *bytes.Buffer, chunk []byte) error {
	compressed.Reset()
	gz.Reset(compressed)
	if _, err := gz.Write(chunk); err != nil {
		return fmt.Errorf("htmlpage: compressing chunk: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("htmlpage: compressing chunk: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(compressed.Bytes())
	if _, err := fmt.Fprintf(w, "<script>statpack.chunk(%q);</script>\n", encoded); err != nil {
		return fmt.Errorf("htmlpage: writing chunk: %w", err)
	}
	return nil
}
