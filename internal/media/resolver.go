package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"kthgpt/internal/config"
	"kthgpt/internal/services"
)

const maxPageBytes = 4 << 20

// Resolver finds where a lecture can be streamed from.
type Resolver interface {
	ResolvePlaybackURL(ctx context.Context, publicID string) (string, error)
	ResolveManifest(ctx context.Context, playbackURL string) (string, error)
}

// HTTPResolver builds playback URLs from a template and scrapes the playback
// page for an HLS manifest.
type HTTPResolver struct {
	template   string
	userAgent  string
	httpClient *http.Client
}

// NewHTTPResolver constructs a resolver from media settings.
func NewHTTPResolver(cfg config.Media, client *http.Client) *HTTPResolver {
	if client == nil {
		timeout := time.Duration(cfg.ManifestTimeout) * time.Second
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPResolver{
		template:   cfg.PlaybackURLTemplate,
		userAgent:  cfg.UserAgent,
		httpClient: client,
	}
}

// ResolvePlaybackURL substitutes publicID into the playback template.
func (r *HTTPResolver) ResolvePlaybackURL(_ context.Context, publicID string) (string, error) {
	publicID = strings.TrimSpace(publicID)
	if publicID == "" {
		return "", services.Wrap(services.ErrValidation, "downloading", "playback url", "public id is required", nil)
	}
	if !strings.Contains(r.template, "{public_id}") {
		return "", services.Wrap(services.ErrConfiguration, "downloading", "playback url", "template is missing {public_id}", nil)
	}
	raw := strings.ReplaceAll(r.template, "{public_id}", url.PathEscape(publicID))
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", services.Wrap(services.ErrConfiguration, "downloading", "playback url", fmt.Sprintf("invalid playback url %q", raw), err)
	}
	return parsed.String(), nil
}

// ResolveManifest fetches the playback page and returns the absolute URL of
// the first .m3u8 manifest it references.
func (r *HTTPResolver) ResolveManifest(ctx context.Context, playbackURL string) (string, error) {
	base, err := url.Parse(playbackURL)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "downloading", "manifest", "invalid playback url", err)
	}
	page, err := r.fetch(ctx, playbackURL)
	if err != nil {
		return "", err
	}
	candidate, err := findManifest(page)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "downloading", "manifest", "parse playback page", err)
	}
	if candidate == "" {
		return "", services.Wrap(services.ErrNotFound, "downloading", "manifest", "no streaming manifest on playback page", nil)
	}
	ref, err := url.Parse(candidate)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "downloading", "manifest", fmt.Sprintf("invalid manifest url %q", candidate), err)
	}
	return base.ResolveReference(ref).String(), nil
}

func (r *HTTPResolver) fetch(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "downloading", "manifest", "build request", err)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "downloading", "manifest", "fetch playback page", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		marker := services.ErrExternalTool
		if resp.StatusCode == http.StatusNotFound {
			marker = services.ErrNotFound
		}
		return "", services.Wrap(marker, "downloading", "manifest", fmt.Sprintf("playback page returned HTTP %d", resp.StatusCode), nil)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "downloading", "manifest", "read playback page", err)
	}
	return string(body), nil
}

var manifestPattern = regexp.MustCompile(`[^"'\s<>]+?\.m3u8[^"'\s<>]*`)

// manifestSelectors are checked in order; the first match wins.
var manifestSelectors = []struct {
	selector string
	attr     string
}{
	{`source[type="application/x-mpegURL"]`, "src"},
	{`source[src*=".m3u8"]`, "src"},
	{`video[src*=".m3u8"]`, "src"},
	{`meta[property="og:video"]`, "content"},
	{`meta[property="og:video:url"]`, "content"},
	{`[data-src*=".m3u8"]`, "data-src"},
}

func findManifest(page string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", err
	}
	for _, candidate := range manifestSelectors {
		var found string
		doc.Find(candidate.selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			value, ok := s.Attr(candidate.attr)
			value = strings.TrimSpace(value)
			if !ok || !strings.Contains(value, ".m3u8") {
				return true
			}
			found = value
			return false
		})
		if found != "" {
			return found, nil
		}
	}

	// Players that build the source in script still embed the URL somewhere.
	var found string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if match := manifestPattern.FindString(s.Text()); match != "" {
			found = unescapeScriptURL(match)
			return false
		}
		return true
	})
	return found, nil
}

func unescapeScriptURL(value string) string {
	return strings.ReplaceAll(value, `\/`, `/`)
}
