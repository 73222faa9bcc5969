package spotify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/zmb3/spotify/v2"

	"github.com/forslund/spotify-skill/resolver"
)

// classify maps a raw Web API error onto the resolver's sentinel kinds.
// Callers branch on the sentinels with errors.Is instead of inspecting
// status codes.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var se spotify.Error
	if errors.As(err, &se) {
		switch {
		case se.Status == http.StatusUnauthorized:
			return fmt.Errorf("%s: %w", se.Message, resolver.ErrNotAuthorized)
		case se.Status >= http.StatusInternalServerError:
			return fmt.Errorf("%s: %w", se.Message, resolver.ErrTransient)
		}
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%v: %w", err, resolver.ErrTransient)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%v: %w", err, resolver.ErrTransient)
	}
	return err
}

// notFound reports whether err is the Web API's 404 response.
func notFound(err error) bool {
	var se spotify.Error
	return errors.As(err, &se) && se.Status == http.StatusNotFound
}
