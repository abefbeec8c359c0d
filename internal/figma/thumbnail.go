package figma

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// ResolveSignedURL probes a thumbnail reference without following redirects and
// returns the signed image URL from the Location header. The image itself is never
// downloaded. Any response other than a 302 is an error.
func (s *Session) ResolveSignedURL(ctx context.Context, ref string) (string, error) {
	req, err := s.newRequest(ctx, http.MethodGet, ref)
	if err != nil {
		return "", &ThumbnailResolutionError{URL: ref, Err: err}
	}

	resp, err := s.probeClient.Do(req)
	if err != nil {
		return "", &ThumbnailResolutionError{URL: ref, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusFound {
		if s.logger != nil {
			s.logger.Warn().Str("url", ref).Int("status", resp.StatusCode).Msg("Thumbnail probe did not redirect")
		}
		return "", &ThumbnailResolutionError{URL: ref, StatusCode: resp.StatusCode}
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return "", &ThumbnailResolutionError{
			URL:        ref,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("redirect without Location header"),
		}
	}

	if isAbsolute(location) {
		return location, nil
	}
	signed, err := req.URL.Parse(location)
	if err != nil {
		return "", &ThumbnailResolutionError{URL: ref, StatusCode: resp.StatusCode, Err: err}
	}
	return signed.String(), nil
}

// Thumbnail resolves ref and renders it as an image linked to parentURL.
func (s *Session) Thumbnail(ctx context.Context, parentURL, ref string) (string, error) {
	signed, err := s.ResolveSignedURL(ctx, ref)
	if err != nil {
		return "", err
	}
	return RenderThumbnail(parentURL, signed), nil
}

// RenderThumbnail returns an inline image fragment linking to parentURL.
// URLs are embedded as given; the backend-provided values are trusted.
func RenderThumbnail(parentURL, imageURL string) string {
	return fmt.Sprintf(`<a href="%s"><img src="%s"></a>`, parentURL, imageURL)
}

// isAbsolute reports whether ref carries a scheme and host.
func isAbsolute(ref string) bool {
	u, err := url.Parse(ref)
	return err == nil && u.Scheme != "" && u.Host != ""
}
