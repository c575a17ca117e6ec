package server

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"epub-streamer/pkg/bufstream"
	"epub-streamer/pkg/log"
	"epub-streamer/pkg/publication"

	"github.com/labstack/echo/v4"
)

// GetResource serves one resource of a publication. Transforms always
// produce the full resource; Range requests are sliced here.
func (s *Server) GetResource(c echo.Context) error {
	id := c.Param("id")
	href, err := url.PathUnescape(c.Param("*"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "bad resource path")
	}

	pkg, err := s.Library.Open(id)
	if err != nil {
		return httpError(err)
	}
	defer pkg.Close()

	rc, size, err := pkg.Open(href)
	if err != nil {
		return httpError(err)
	}

	pub := pkg.Publication
	link := pub.LinkByHref(href)
	rangeHeader := c.Request().Header.Get("Range")
	begin, end := parseRange(rangeHeader, size)

	sal, transformed, err := s.Registry.Apply(c.Request().Context(), pub, link, rc, size, begin, end)
	if err != nil {
		log.Error().Err(err).Str("publication", id).Str("href", href).Msg("transform failed")
		return httpError(err)
	}
	defer sal.Stream.Close()
	if transformed {
		log.Debug().Str("publication", id).Str("href", href).Str("algorithm", link.EncryptionAlgorithm()).Msg("resource transformed")
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, contentType(href, linkMediaType(link)))
	res.Header().Set("Accept-Ranges", "bytes")

	if rangeHeader == "" && s.compress && acceptsZstd(c.Request()) {
		data, err := bufstream.ToBuffer(sal.Stream)
		if err != nil {
			return httpError(err)
		}
		res.Header().Set(echo.HeaderContentEncoding, "zstd")
		res.Header().Add(echo.HeaderVary, echo.HeaderAcceptEncoding)
		return c.Blob(http.StatusOK, res.Header().Get(echo.HeaderContentType), s.zenc.EncodeAll(data, nil))
	}

	if rs, ok := sal.Stream.(io.ReadSeeker); ok {
		http.ServeContent(res, c.Request(), path.Base(href), time.Time{}, rs)
		return nil
	}
	if rangeHeader != "" {
		data, err := bufstream.ToBuffer(sal.Stream)
		if err != nil {
			return httpError(err)
		}
		http.ServeContent(res, c.Request(), path.Base(href), time.Time{}, bytes.NewReader(data))
		return nil
	}
	res.Header().Set(echo.HeaderContentLength, strconv.FormatInt(sal.Length, 10))
	return c.Stream(http.StatusOK, res.Header().Get(echo.HeaderContentType), sal.Stream)
}

func linkMediaType(link *publication.Link) string {
	if link == nil {
		return ""
	}
	return link.MediaType
}

func contentType(href, declared string) string {
	if declared != "" {
		return declared
	}
	if t := mime.TypeByExtension(path.Ext(href)); t != "" {
		return t
	}
	return echo.MIMEOctetStream
}

func acceptsZstd(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get(echo.HeaderAcceptEncoding), ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(enc), ";")
		if strings.EqualFold(name, "zstd") {
			return true
		}
	}
	return false
}

// parseRange extracts the bounds of a single "bytes=" range. It returns
// -1, -1 when the header is absent or not a single satisfiable range.
func parseRange(header string, size int64) (int64, int64) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return -1, -1
	}
	first, last, ok := strings.Cut(strings.TrimSpace(spec), "-")
	if !ok {
		return -1, -1
	}
	if first == "" {
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n <= 0 {
			return -1, -1
		}
		return max(size-n, 0), size - 1
	}
	begin, err := strconv.ParseInt(first, 10, 64)
	if err != nil || begin < 0 || begin >= size {
		return -1, -1
	}
	end := size - 1
	if last != "" {
		e, err := strconv.ParseInt(last, 10, 64)
		if err != nil || e < begin {
			return -1, -1
		}
		end = min(e, size-1)
	}
	return begin, end
}
