// Package hosting decides how the HTTP handler is exposed: bound to a
// local listener, or proxied from AWS Lambda invocations.
package hosting

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"epub-streamer/pkg/config"
	"epub-streamer/pkg/log"

	"github.com/aws/aws-lambda-go/lambda"
	echoadapter "github.com/awslabs/aws-lambda-go-api-proxy/echo"
	"github.com/labstack/echo/v4"
)

const (
	// set by the Lambda runtime in every function sandbox
	lambdaRuntimeEnv = "AWS_LAMBDA_RUNTIME_API"
	// any non-empty value, "false" included, selects the listener
	localEnv = "IS_LOCAL"

	shutdownTimeout = 10 * time.Second
)

// ResolveMode returns config.HostingListener or config.HostingLambda.
// An explicit hosting_mode wins, then the local flag (STREAMER_LOCAL or a
// non-empty IS_LOCAL), then the presence of the Lambda runtime API.
func ResolveMode(cfg *config.Config, getenv func(string) string) string {
	if getenv == nil {
		getenv = os.Getenv
	}
	switch {
	case cfg.HostingMode == config.HostingListener || cfg.HostingMode == config.HostingLambda:
		return cfg.HostingMode
	case cfg.Local || getenv(localEnv) != "":
		return config.HostingListener
	case getenv(lambdaRuntimeEnv) != "":
		return config.HostingLambda
	default:
		return config.HostingListener
	}
}

// Run serves e in the given mode until ctx is done or serving fails.
func Run(ctx context.Context, e *echo.Echo, mode, addr string) error {
	switch mode {
	case config.HostingListener:
		return runListener(ctx, e, addr)
	case config.HostingLambda:
		log.Info().Msg("serving through the Lambda adapter")
		adapter := echoadapter.New(e)
		lambda.StartWithOptions(adapter.ProxyWithContext, lambda.WithContext(ctx))
		return nil
	default:
		return fmt.Errorf("hosting: unknown mode %q", mode)
	}
}

func runListener(ctx context.Context, e *echo.Echo, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("listening")
		errCh <- e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("hosting: listener: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info().Msg("shutting down listener")
		if err := e.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("hosting: shutdown: %w", err)
		}
		return nil
	}
}
