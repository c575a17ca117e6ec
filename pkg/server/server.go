package server

import (
	"errors"
	"net/http"

	"epub-streamer/pkg/log"
	"epub-streamer/pkg/publication"
	"epub-streamer/pkg/transform"

	"github.com/klauspost/compress/zstd"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Options struct {
	// CompressResponses enables zstd encoding of full (non-range) responses
	// for clients that accept it.
	CompressResponses bool
}

// Server exposes a publication library over HTTP, routing every resource
// through the transform registry.
type Server struct {
	Echo     *echo.Echo
	Library  *publication.Library
	Registry *transform.Registry

	compress bool
	zenc     *zstd.Encoder
}

func New(lib *publication.Library, reg *transform.Registry, opts Options) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		Echo:     e,
		Library:  lib,
		Registry: reg,
		compress: opts.CompressResponses,
	}
	if s.compress {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			return nil, err
		}
		s.zenc = enc
	}

	e.Use(middleware.Recover())
	e.Use(requestLogger())

	e.GET("/health", s.GetHealth)
	e.GET("/publications", s.GetPublications)
	e.GET("/pub/:id/manifest.json", s.GetManifest)
	e.GET("/pub/:id/*", s.GetResource)
	return s, nil
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	})
}

func (s *Server) GetHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) GetPublications(c echo.Context) error {
	ids, err := s.Library.List()
	if err != nil {
		return httpError(err)
	}
	if ids == nil {
		ids = []string{}
	}
	return c.JSON(http.StatusOK, ids)
}

func (s *Server) GetManifest(c echo.Context) error {
	pkg, err := s.Library.Open(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	defer pkg.Close()
	return c.JSON(http.StatusOK, pkg.Publication)
}

// Close releases the response encoder.
func (s *Server) Close() error {
	if s.zenc != nil {
		return s.zenc.Close()
	}
	return nil
}

func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, publication.ErrNotFound), errors.Is(err, publication.ErrBadHref):
		return echo.NewHTTPError(http.StatusNotFound, "not found").SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
	}
}
