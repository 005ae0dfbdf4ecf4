package transport

import (
	"archive/tar"
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/text/encoding/htmlindex"
)

var gzipMagic = []byte{0x1f, 0x8b}

// decodeBody turns a 200 response body into a flat buffer of at most limit
// bytes. It returns the content encoding that was actually applied.
func decodeBody(h http.Header, body io.Reader, limit int64, sniff bool) ([]byte, string, error) {
	enc := strings.ToLower(strings.TrimSpace(h.Get("Content-Encoding")))
	br := bufio.NewReader(body)
	if (enc == "" || enc == "identity") && sniff {
		if magic, _ := br.Peek(len(gzipMagic)); bytes.Equal(magic, gzipMagic) {
			enc = "gzip"
		}
	}

	var (
		out []byte
		err error
	)
	switch enc {
	case "gzip", "x-gzip":
		out, err = gunzip(br, limit)
	case "br":
		out, err = readBounded(brotli.NewReader(br), limit)
		if err != nil {
			err = fmt.Errorf("%w: brotli: %v", ErrDecode, err)
		}
	case "", "identity":
		enc = ""
		out, err = readBounded(br, limit)
		if errors.Is(err, errBodyTooLarge) {
			err = fmt.Errorf("%w: %v", ErrDecode, err)
		} else if err != nil {
			err = fmt.Errorf("%w: reading body: %v", ErrTransport, err)
		}
	default:
		return nil, enc, fmt.Errorf("%w: unsupported content encoding %q", ErrDecode, enc)
	}
	if err != nil {
		return nil, enc, err
	}

	out, err = toUTF8(h.Get("Content-Type"), out)
	if err != nil {
		return nil, enc, fmt.Errorf("%w: charset: %v", ErrDecode, err)
	}
	return out, enc, nil
}

// gunzip decompresses a gzip stream. A tar archive inside the stream yields
// the contents of its first regular file.
func gunzip(r io.Reader, limit int64) ([]byte, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: gzip header: %v", ErrDecode, err)
	}
	defer zr.Close()

	out, err := readBounded(zr, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: gzip: %v", ErrDecode, err)
	}
	if isTar(out) {
		return untarFirst(out, limit)
	}
	return out, nil
}

func isTar(b []byte) bool {
	const magicOffset = 257
	return len(b) >= magicOffset+5 && string(b[magicOffset:magicOffset+5]) == "ustar"
}

func untarFirst(b []byte, limit int64) ([]byte, error) {
	tr := tar.NewReader(bytes.NewReader(b))
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil, fmt.Errorf("%w: tar archive has no regular file", ErrDecode)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: tar: %v", ErrDecode, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		out, err := readBounded(tr, limit)
		if err != nil {
			return nil, fmt.Errorf("%w: tar entry %s: %v", ErrDecode, hdr.Name, err)
		}
		return out, nil
	}
}

// readBounded reads all of r, failing instead of truncating when more than
// limit bytes arrive.
func readBounded(r io.Reader, limit int64) ([]byte, error) {
	out, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(out)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", errBodyTooLarge, limit)
	}
	return out, nil
}

// toUTF8 transcodes b when the Content-Type names a non UTF-8 charset.
func toUTF8(contentType string, b []byte) ([]byte, error) {
	if contentType == "" {
		return b, nil
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return b, nil
	}
	charset := params["charset"]
	if charset == "" {
		return b, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return b, nil
	}
	if name, _ := htmlindex.Name(enc); name == "utf-8" {
		return b, nil
	}
	return enc.NewDecoder().Bytes(b)
}
