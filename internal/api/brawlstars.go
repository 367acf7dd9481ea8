package api

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"brawlmeta/internal/config"

	"github.com/valyala/fasthttp"
)

const baseURL = "https://api.brawlstars.com/v1"

// tagPattern matches the character set Supercell uses for player and club tags.
var tagPattern = regexp.MustCompile(`^[0289PYLQGRJCUV]{3,12}$`)

// ValidateTag cleans a tag (uppercase, '#' stripped) and rejects malformed input
// before any network call.
func ValidateTag(tag string) (string, error) {
	clean := strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(tag, "#", "")))
	if clean == "" {
		return "", fmt.Errorf("%w: empty tag", ErrInvalidTag)
	}
	if !tagPattern.MatchString(clean) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTag, tag)
	}
	return clean, nil
}

// BrawlClient talks to the official Brawl Stars API. It performs no retries;
// callers go through the resilience guard.
type BrawlClient struct {
	apiKey string
	client *fasthttp.Client
}

func NewBrawlClient(cfg *config.Config) *BrawlClient {
	return &BrawlClient{
		apiKey: cfg.BrawlAPIKey,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
	}
}

func (c *BrawlClient) GetPlayer(ctx context.Context, tag string) (*Player, error) {
	clean, err := ValidateTag(tag)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/players/%%23%s", baseURL, clean)
	return doRequest[Player](ctx, c, url)
}

func (c *BrawlClient) GetBattleLog(ctx context.Context, tag string) (*BattleLog, error) {
	clean, err := ValidateTag(tag)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/players/%%23%s/battlelog", baseURL, clean)
	return doRequest[BattleLog](ctx, c, url)
}

func (c *BrawlClient) GetPlayerRankings(ctx context.Context, countryCode string, limit int) (*PlayerRankings, error) {
	url := fmt.Sprintf("%s/rankings/%s/players?limit=%d", baseURL, countryCode, limit)
	return doRequest[PlayerRankings](ctx, c, url)
}

func (c *BrawlClient) GetBrawlerRankings(ctx context.Context, brawlerID int64, countryCode string, limit int) (*PlayerRankings, error) {
	url := fmt.Sprintf("%s/rankings/%s/brawlers/%d?limit=%d", baseURL, countryCode, brawlerID, limit)
	return doRequest[PlayerRankings](ctx, c, url)
}

func (c *BrawlClient) GetClubRankings(ctx context.Context, countryCode string, limit int) (*ClubRankings, error) {
	url := fmt.Sprintf("%s/rankings/%s/clubs?limit=%d", baseURL, countryCode, limit)
	return doRequest[ClubRankings](ctx, c, url)
}

func (c *BrawlClient) GetClubMembers(ctx context.Context, clubTag string) (*ClubMembers, error) {
	clean, err := ValidateTag(clubTag)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/clubs/%%23%s/members", baseURL, clean)
	return doRequest[ClubMembers](ctx, c, url)
}

func (c *BrawlClient) GetBrawlers(ctx context.Context) (*BrawlerCatalog, error) {
	url := fmt.Sprintf("%s/brawlers", baseURL)
	return doRequest[BrawlerCatalog](ctx, c, url)
}

func (c *BrawlClient) GetEventRotation(ctx context.Context) (*EventRotation, error) {
	url := fmt.Sprintf("%s/events/rotation", baseURL)
	return doRequest[EventRotation](ctx, c, url)
}

func doRequest[T any](ctx context.Context, client *BrawlClient, url string) (*T, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Authorization", "Bearer "+client.apiKey)
	req.Header.Set("Accept", "application/json")

	deadline, ok := ctx.Deadline()
	if ok {
		if err := client.client.DoDeadline(req, resp, deadline); err != nil {
			return nil, err
		}
	} else {
		if err := client.client.Do(req, resp); err != nil {
			return nil, err
		}
	}

	switch resp.StatusCode() {
	case fasthttp.StatusOK:
	case fasthttp.StatusNotFound:
		return nil, ErrNotFound
	case fasthttp.StatusTooManyRequests:
		return nil, ErrRateLimited
	case fasthttp.StatusServiceUnavailable:
		return nil, ErrMaintenance
	case fasthttp.StatusForbidden:
		return nil, ErrForbidden
	default:
		return nil, &APIError{StatusCode: resp.StatusCode()}
	}

	var result T
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}
