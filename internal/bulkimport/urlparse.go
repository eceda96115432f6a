package bulkimport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Video platforms the detector recognizes.
const (
	PlatformYouTube   = "youtube"
	PlatformInstagram = "instagram"
	PlatformTikTok    = "tiktok"
	PlatformUnknown   = "unknown"
)

// MetadataTimeout bounds each oEmbed request. Metadata is a quick preview,
// not the extraction itself.
const MetadataTimeout = 15 * time.Second

var youtubePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?.*v=|youtu\.be/)([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/embed/([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/v/([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/shorts/([A-Za-z0-9_-]{11})`),
}

var instagramPattern = regexp.MustCompile(`instagram\.com/(?:p|reel|tv)/([A-Za-z0-9_-]+)`)

var tiktokPatterns = []*regexp.Regexp{
	regexp.MustCompile(`tiktok\.com/@[\w.]+/video/(\d+)`),
	regexp.MustCompile(`tiktok\.com/t/([A-Za-z0-9_-]+)`),
	regexp.MustCompile(`vm\.tiktok\.com/([A-Za-z0-9_-]+)`),
}

// IdentifyPlatform names the video platform a URL belongs to and extracts
// the video id when the URL shape carries one. Shortened URLs that only
// reveal the platform through their hostname return an empty id.
func IdentifyPlatform(rawURL string) (string, string) {
	rawURL = strings.TrimSpace(rawURL)

	for _, p := range youtubePatterns {
		if m := p.FindStringSubmatch(rawURL); m != nil {
			return PlatformYouTube, m[1]
		}
	}
	if m := instagramPattern.FindStringSubmatch(rawURL); m != nil {
		return PlatformInstagram, m[1]
	}
	for _, p := range tiktokPatterns {
		if m := p.FindStringSubmatch(rawURL); m != nil {
			return PlatformTikTok, m[1]
		}
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return PlatformUnknown, ""
	}
	host := strings.ToLower(parsed.Hostname())
	switch {
	case strings.Contains(host, "youtube") || host == "youtu.be":
		return PlatformYouTube, ""
	case strings.Contains(host, "instagram"):
		return PlatformInstagram, ""
	case strings.Contains(host, "tiktok"):
		return PlatformTikTok, ""
	}
	return PlatformUnknown, ""
}

// URLMetadata is the quick preview for one video URL. A non-empty Error
// means the preview failed; the URL may still extract fine during import.
type URLMetadata struct {
	URL             string `json:"url"`
	Platform        string `json:"platform"`
	VideoID         string `json:"video_id,omitempty"`
	Title           string `json:"title,omitempty"`
	Author          string `json:"author,omitempty"`
	ThumbnailURL    string `json:"thumbnail_url,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	Error           string `json:"error,omitempty"`
}

// MetadataFetcher pulls video titles and thumbnails from the platforms'
// oEmbed endpoints without downloading any media.
type MetadataFetcher struct {
	client        *http.Client
	youtubeOEmbed string
	tiktokOEmbed  string
}

// NewMetadataFetcher returns a fetcher against the public oEmbed endpoints.
func NewMetadataFetcher() *MetadataFetcher {
	return &MetadataFetcher{
		client:        &http.Client{Timeout: MetadataTimeout},
		youtubeOEmbed: "https://www.youtube.com/oembed",
		tiktokOEmbed:  "https://www.tiktok.com/oembed",
	}
}

// Fetch resolves metadata for one URL. Failures land in the Error field
// rather than an error return so batch callers keep their positions.
func (f *MetadataFetcher) Fetch(ctx context.Context, rawURL string) URLMetadata {
	platform, videoID := IdentifyPlatform(rawURL)
	meta := URLMetadata{URL: rawURL, Platform: platform, VideoID: videoID}

	switch platform {
	case PlatformYouTube:
		f.fetchOEmbed(ctx, &meta, f.youtubeOEmbed+"?url="+url.QueryEscape(rawURL)+"&format=json", "YouTube")
	case PlatformTikTok:
		f.fetchOEmbed(ctx, &meta, f.tiktokOEmbed+"?url="+url.QueryEscape(rawURL), "TikTok")
	case PlatformInstagram:
		// Instagram's oEmbed endpoint needs app credentials, so the preview
		// carries only what the URL itself says.
		if videoID != "" {
			meta.Title = "Instagram Post " + videoID
		} else {
			meta.Title = "Instagram Post"
		}
	default:
		meta.Error = "URL not from a supported platform (YouTube, Instagram, TikTok)"
	}
	return meta
}

func (f *MetadataFetcher) fetchOEmbed(ctx context.Context, meta *URLMetadata, oembedURL, site string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, oembedURL, nil)
	if err != nil {
		meta.Error = err.Error()
		return
	}

	resp, err := f.client.Do(req)
	if err != nil {
		meta.Error = "could not connect to " + site
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		meta.Error = fmt.Sprintf("could not fetch metadata (status %d)", resp.StatusCode)
		return
	}

	var body struct {
		Title        string `json:"title"`
		AuthorName   string `json:"author_name"`
		ThumbnailURL string `json:"thumbnail_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		meta.Error = fmt.Sprintf("malformed oembed response: %v", err)
		return
	}
	meta.Title = body.Title
	meta.Author = body.AuthorName
	meta.ThumbnailURL = body.ThumbnailURL
}

// FetchBatch fetches metadata for every URL with at most maxConcurrent
// requests in flight. Results keep the input order; per-URL failures stay
// in their slot.
func (f *MetadataFetcher) FetchBatch(ctx context.Context, urls []string, maxConcurrent int) []URLMetadata {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	results := make([]URLMetadata, len(urls))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			results[i] = f.Fetch(ctx, u)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
