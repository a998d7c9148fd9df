// Package fetch talks to the X GraphQL API: it pulls long-form articles and
// resolves posts quoted inside them.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"xarc/article"
	"xarc/config"
)

// GraphQL operations the client depends on. Query hashes are pinned by the
// upstream web bundle and change when X redeploys, at which point they need
// an update here.
const (
	defaultBaseURL = "https://x.com/i/api/graphql"

	articleQueryID   = "0WhPDVsMOsYyeeZtTiuPSg"
	articleOperation = "TwitterArticleByRestId"

	tweetQueryID   = "0hWvDhmW8YQ-S_ib3azIrw"
	tweetOperation = "TweetResultByRestId"
)

// featureSwitches goes verbatim with every query, the endpoints reject
// requests missing these.
const featureSwitches = `{"creator_subscriptions_tweet_preview_api_enabled":true,` +
	`"freedom_of_speech_not_reach_fetch_enabled":true,` +
	`"longform_notetweets_consumption_enabled":true,` +
	`"longform_notetweets_inline_media_enabled":true,` +
	`"longform_notetweets_rich_text_read_enabled":true,` +
	`"responsive_web_enhance_cards_enabled":false,` +
	`"responsive_web_graphql_exclude_directive_enabled":true,` +
	`"responsive_web_graphql_skip_user_profile_image_extensions_enabled":false,` +
	`"responsive_web_graphql_timeline_navigation_enabled":true,` +
	`"responsive_web_twitter_article_tweet_consumption_enabled":true,` +
	`"standardized_nudges_misinfo":true,` +
	`"tweet_awards_web_tipping_enabled":false,` +
	`"tweet_with_visibility_results_prefer_gql_limited_actions_policy_enabled":true,` +
	`"verified_phone_label_enabled":false,` +
	`"view_counts_everywhere_api_enabled":true}`

const maxBackoff = 5 * time.Minute

// Client is an authenticated X API client. The pipeline talks to the API
// strictly sequentially, concurrent use is not supported.
type Client struct {
	hc     *http.Client
	base   string
	bearer string
	csrf   string
	agent  string
	log    *zap.Logger
}

// Configured reports whether all credentials needed for API access are set.
func Configured(cfg *config.AuthConfig) bool {
	return len(cfg.Bearer) > 0 && len(cfg.AuthToken) > 0 && len(cfg.CSRFToken) > 0
}

// New builds the client from auth configuration. Credentials are checked for
// presence only, the API is the judge of their validity.
func New(cfg *config.AuthConfig, log *zap.Logger) (*Client, error) {
	if !Configured(cfg) {
		return nil, errors.New("authentication is not configured, bearer, auth_token and csrf_token are all required")
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("unable to create cookie jar: %w", err)
	}
	u, err := url.Parse(defaultBaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse API base URL: %w", err)
	}
	jar.SetCookies(u, []*http.Cookie{
		{Name: "auth_token", Value: string(cfg.AuthToken), Path: "/", Secure: true},
		{Name: "ct0", Value: string(cfg.CSRFToken), Path: "/", Secure: true},
	})

	return &Client{
		hc:     &http.Client{Jar: jar, Timeout: 30 * time.Second},
		base:   defaultBaseURL,
		bearer: string(cfg.Bearer),
		csrf:   string(cfg.CSRFToken),
		agent:  cfg.UserAgent,
		log:    log.Named("fetch"),
	}, nil
}

// FetchArticle pulls one long-form article by its rest ID. Returns the parsed
// document along with the raw response bytes for debug reporting.
func (c *Client) FetchArticle(ctx context.Context, id string) (*article.Document, []byte, error) {
	c.log.Debug("Fetching article", zap.String("id", id))

	data, err := c.get(ctx, articleOperation, articleQueryID, map[string]any{"twitterArticleId": id})
	if err != nil {
		return nil, nil, fmt.Errorf("unable to fetch article %s: %w", id, err)
	}
	doc, err := article.Parse(data, c.log)
	if err != nil {
		return nil, data, fmt.Errorf("unable to parse article %s: %w", id, err)
	}
	if len(doc.ID) == 0 {
		doc.ID = id
	}
	return doc, data, nil
}

// LookupTweet resolves one quoted post. Satisfies the renderer's lookup
// contract, normalization of the result happens on the renderer side.
func (c *Client) LookupTweet(ctx context.Context, id string) (*article.TweetInfo, error) {
	c.log.Debug("Fetching quoted post", zap.String("id", id))

	data, err := c.get(ctx, tweetOperation, tweetQueryID, map[string]any{
		"tweetId":                id,
		"includePromotedContent": false,
		"withCommunity":          false,
		"withVoice":              false,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to fetch post %s: %w", id, err)
	}
	return decodeTweet(data, id)
}

// get performs one GraphQL GET, retrying a single time when rate limited.
func (c *Client) get(ctx context.Context, operation, queryID string, variables map[string]any) ([]byte, error) {
	vars, err := json.Marshal(variables)
	if err != nil {
		return nil, fmt.Errorf("unable to encode query variables: %w", err)
	}

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/"+queryID+"/"+operation, nil)
		if err != nil {
			return nil, fmt.Errorf("unable to create request: %w", err)
		}
		q := url.Values{}
		q.Set("variables", string(vars))
		q.Set("features", featureSwitches)
		req.URL.RawQuery = q.Encode()

		req.Header.Set("Authorization", "Bearer "+c.bearer)
		req.Header.Set("X-Csrf-Token", c.csrf)
		req.Header.Set("Accept", "application/json")
		if len(c.agent) > 0 {
			req.Header.Set("User-Agent", c.agent)
		}

		resp, err := c.hc.Do(req)
		if err != nil {
			return nil, fmt.Errorf("unable to call API: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt == 0 {
			delay := backoffDelay(resp)
			resp.Body.Close()
			c.log.Warn("Rate limited by API, backing off", zap.String("operation", operation), zap.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			continue
		}

		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("unable to read API response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected API response: %s", resp.Status)
		}
		return data, nil
	}
}

// backoffDelay derives the wait before the single retry from rate limit
// response headers.
func backoffDelay(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); len(v) > 0 {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return min(time.Duration(secs)*time.Second, maxBackoff)
		}
	}
	if v := resp.Header.Get("X-Rate-Limit-Reset"); len(v) > 0 {
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			if d := time.Until(time.Unix(ts, 0)); d > 0 {
				return min(d, maxBackoff)
			}
		}
	}
	return time.Minute
}

// decodeTweet extracts author and text from a TweetResultByRestId response.
// Newer deployments moved user fields from legacy to core, and posts with
// visibility limits arrive wrapped one level deeper, so every spot is probed.
func decodeTweet(data []byte, id string) (*article.TweetInfo, error) {
	var envelope struct {
		Data struct {
			TweetResult struct {
				Result json.RawMessage `json:"result"`
			} `json:"tweetResult"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("unable to decode post payload: %w", err)
	}
	result := envelope.Data.TweetResult.Result
	if len(result) == 0 {
		return nil, fmt.Errorf("post %s is not in the response", id)
	}

	var wrapper struct {
		Tweet json.RawMessage `json:"tweet"`
	}
	if err := json.Unmarshal(result, &wrapper); err == nil && len(wrapper.Tweet) > 0 {
		result = wrapper.Tweet
	}

	var post struct {
		RestID string `json:"rest_id"`
		Core   struct {
			UserResults struct {
				Result struct {
					Core struct {
						Name       string `json:"name"`
						ScreenName string `json:"screen_name"`
					} `json:"core"`
					Legacy struct {
						Name       string `json:"name"`
						ScreenName string `json:"screen_name"`
					} `json:"legacy"`
				} `json:"result"`
			} `json:"user_results"`
		} `json:"core"`
		NoteTweet struct {
			NoteTweetResults struct {
				Result struct {
					Text string `json:"text"`
				} `json:"result"`
			} `json:"note_tweet_results"`
		} `json:"note_tweet"`
		Legacy struct {
			FullText string `json:"full_text"`
			Text     string `json:"text"`
		} `json:"legacy"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(result, &post); err != nil {
		return nil, fmt.Errorf("unable to decode post %s: %w", id, err)
	}

	info := &article.TweetInfo{ID: post.RestID}
	if len(info.ID) == 0 {
		info.ID = id
	}

	user := post.Core.UserResults.Result
	info.Name = user.Core.Name
	if len(info.Name) == 0 {
		info.Name = user.Legacy.Name
	}
	info.Handle = user.Core.ScreenName
	if len(info.Handle) == 0 {
		info.Handle = user.Legacy.ScreenName
	}

	switch {
	case len(post.NoteTweet.NoteTweetResults.Result.Text) > 0:
		info.Text = post.NoteTweet.NoteTweetResults.Result.Text
	case len(post.Legacy.FullText) > 0:
		info.Text = post.Legacy.FullText
	case len(post.Legacy.Text) > 0:
		info.Text = post.Legacy.Text
	default:
		info.Text = post.Text
	}
	return info, nil
}

// ParseArticleRef extracts the article rest ID from a bare ID or any of the
// status and article URL forms.
func ParseArticleRef(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) == 0 {
		return "", errors.New("empty article reference")
	}
	if isDigits(s) {
		return s, nil
	}

	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("unrecognized article reference %q", s)
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, seg := range segments {
		if (seg == "status" || seg == "article") && i+1 < len(segments) && isDigits(segments[i+1]) {
			return segments[i+1], nil
		}
	}
	for i := len(segments) - 1; i >= 0; i-- {
		if isDigits(segments[i]) {
			return segments[i], nil
		}
	}
	return "", fmt.Errorf("no article ID in %q", s)
}

func isDigits(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
