package gameclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	defaultRetryAttempts = 3
	defaultRetryBackoff  = 5 * time.Second
	defaultHTTPTimeout   = 10 * time.Second

	// clientPlatform is the static platform blob the match service expects
	// on every request.
	clientPlatform = "ew0KCSJwbGF0Zm9ybVR5cGUiOiAiUEMiLA0KCSJwbGF0Zm9ybU9TIjogIldpbmRvd3MiLA0KCSJwbGF0Zm9ybU9TVmVyc2lvbiI6ICIxMC4wLjE5MDQyLjEuMjU2LjY0Yml0IiwNCgkicGxhdGZvcm1DaGlwc2V0IjogIlVua25vd24iDQp9"
)

// Options configures a Client.
type Options struct {
	Region       string // match service region, e.g. "eu"
	Shard        string // glz shard, e.g. "eu-1"
	LockfilePath string // override for the game client lockfile location
	ClientVer    string // riot client version header value

	// Base URL overrides, used by tests to point at httptest servers.
	LocalBaseURL string
	GLZBaseURL   string
	PDBaseURL    string

	RetryAttempts int
	RetryBackoff  time.Duration
}

type credentials struct {
	port     string
	password string
}

// Client talks to the local game client and the remote match services. It
// is the snapshot source boundary: everything it returns is a raw payload
// or one of the typed failures in errors.go.
type Client struct {
	httpClient *http.Client
	opts       Options

	mu      sync.Mutex
	creds   *credentials
	headers map[string]string
	puuid   string
}

// NewClient constructs a snapshot source for the given region/shard.
func NewClient(opts Options) *Client {
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = defaultRetryAttempts
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = defaultRetryBackoff
	}
	if opts.GLZBaseURL == "" {
		opts.GLZBaseURL = fmt.Sprintf("https://glz-%s.%s.a.pvp.net", opts.Shard, opts.Region)
	}
	if opts.PDBaseURL == "" {
		opts.PDBaseURL = fmt.Sprintf("https://pd.%s.a.pvp.net", opts.Region)
	}
	return &Client{
		// The local client API uses a self-signed certificate.
		httpClient: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
			Timeout: defaultHTTPTimeout,
		},
		opts: opts,
	}
}

// lockfilePath returns the configured or platform-default lockfile location.
func (c *Client) lockfilePath() string {
	if c.opts.LockfilePath != "" {
		return c.opts.LockfilePath
	}
	base := os.Getenv("LOCALAPPDATA")
	return filepath.Join(base, "Riot Games", "Riot Client", "Config", "lockfile")
}

// readLockfile parses "name:pid:port:password:protocol".
func (c *Client) readLockfile() (*credentials, error) {
	content, err := os.ReadFile(c.lockfilePath())
	if err != nil {
		return nil, ErrClientNotRunning
	}
	parts := strings.Split(strings.TrimSpace(string(content)), ":")
	if len(parts) != 5 {
		return nil, fmt.Errorf("gameclient: malformed lockfile: expected 5 fields, got %d", len(parts))
	}
	return &credentials{port: parts[2], password: parts[3]}, nil
}

// RefreshAuth re-reads the lockfile and exchanges it for fresh entitlement
// headers. Called at startup and whenever the services reject our tokens.
func (c *Client) RefreshAuth(ctx context.Context) error {
	creds, err := c.readLockfile()
	if err != nil {
		return err
	}

	localAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("riot:"+creds.password))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.localBase(creds)+"/entitlements/v1/token", nil)
	if err != nil {
		return fmt.Errorf("gameclient: build entitlements request: %w", err)
	}
	req.Header.Set("Authorization", localAuth)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: "fetch entitlements", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &TransportError{Op: "fetch entitlements", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: "read entitlements", Err: err}
	}
	var ent entitlementsResponse
	if err := decodeJSON("decode entitlements", body, &ent); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds = creds
	c.puuid = ent.Subject
	c.headers = map[string]string{
		"Authorization":           "Bearer " + ent.AccessToken,
		"X-Riot-Entitlements-JWT": ent.Token,
		"X-Riot-ClientPlatform":   clientPlatform,
		"X-Riot-ClientVersion":    c.opts.ClientVer,
		"User-Agent":              "ShooterGame/13 Windows/10.0.19043.1.256.64bit",
	}
	return nil
}

// PUUID returns the local player's id captured during auth.
func (c *Client) PUUID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.puuid
}

func (c *Client) localBase(creds *credentials) string {
	if c.opts.LocalBaseURL != "" {
		return c.opts.LocalBaseURL
	}
	return "https://127.0.0.1:" + creds.port
}

func (c *Client) currentHeaders() (map[string]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.headers == nil {
		return nil, false
	}
	headers := make(map[string]string, len(c.headers))
	for k, v := range c.headers {
		headers[k] = v
	}
	return headers, true
}

// fetch performs one authenticated request against the match services with
// an explicit bounded retry loop: auth rejection refreshes credentials and
// retries once, not-found short-circuits as the idle signal, and transport
// failures back off a fixed interval between attempts.
func (c *Client) fetch(ctx context.Context, method, url string, payload any) ([]byte, error) {
	headers, ok := c.currentHeaders()
	if !ok {
		if err := c.RefreshAuth(ctx); err != nil {
			return nil, err
		}
		headers, _ = c.currentHeaders()
	}

	refreshed := false
	var lastErr error
	for attempt := 0; attempt < c.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.opts.RetryBackoff):
			}
		}

		var body io.Reader
		if payload != nil {
			raw, err := json.Marshal(payload)
			if err != nil {
				return nil, fmt.Errorf("gameclient: encode request payload: %w", err)
			}
			body = bytes.NewReader(raw)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return nil, fmt.Errorf("gameclient: build request: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			lastErr = err
			continue
		}

		raw, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			if refreshed {
				return nil, ErrAuthExpired
			}
			refreshed = true
			log.Printf("[GameClient] auth rejected (%d), refreshing credentials", resp.StatusCode)
			if err := c.RefreshAuth(ctx); err != nil {
				return nil, ErrAuthExpired
			}
			headers, _ = c.currentHeaders()
			// Refresh does not consume a transport attempt.
			attempt--
			continue
		case resp.StatusCode == http.StatusNotFound:
			return nil, ErrNotFound
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			continue
		case resp.StatusCode != http.StatusOK:
			return nil, &TransportError{Op: method + " " + url, Err: fmt.Errorf("status %d", resp.StatusCode)}
		}
		if readErr != nil {
			lastErr = readErr
			continue
		}
		return raw, nil
	}
	return nil, &TransportError{Op: method + " " + url, Err: lastErr}
}

// FetchPresences returns the local chat presence list.
func (c *Client) FetchPresences(ctx context.Context) ([]RawPresence, error) {
	c.mu.Lock()
	creds := c.creds
	c.mu.Unlock()
	if creds == nil {
		if err := c.RefreshAuth(ctx); err != nil {
			return nil, err
		}
		c.mu.Lock()
		creds = c.creds
		c.mu.Unlock()
	}

	localAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("riot:"+creds.password))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.localBase(creds)+"/chat/v4/presences", nil)
	if err != nil {
		return nil, fmt.Errorf("gameclient: build presences request: %w", err)
	}
	req.Header.Set("Authorization", localAuth)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "fetch presences", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Op: "fetch presences", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "read presences", Err: err}
	}
	var list presenceList
	if err := decodeJSON("decode presences", body, &list); err != nil {
		return nil, err
	}
	return list.Presences, nil
}

// FetchCurrentMatchID resolves the local player's active match, returning
// ErrNotFound when no match is in progress.
func (c *Client) FetchCurrentMatchID(ctx context.Context) (string, error) {
	if c.PUUID() == "" {
		if err := c.RefreshAuth(ctx); err != nil {
			return "", err
		}
	}
	url := fmt.Sprintf("%s/core-game/v1/players/%s", c.opts.GLZBaseURL, c.PUUID())
	raw, err := c.fetch(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	var resp corePlayerResponse
	if err := decodeJSON("decode current match", raw, &resp); err != nil {
		return "", err
	}
	if resp.MatchID == "" {
		return "", ErrNotFound
	}
	return resp.MatchID, nil
}

// FetchMatchDetails returns the raw core-game payload for a match.
func (c *Client) FetchMatchDetails(ctx context.Context, matchID string) (*RawMatch, error) {
	url := fmt.Sprintf("%s/core-game/v1/matches/%s", c.opts.GLZBaseURL, matchID)
	raw, err := c.fetch(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	var match RawMatch
	if err := decodeJSON("decode match details", raw, &match); err != nil {
		return nil, err
	}
	return &match, nil
}

// FetchPlayerNames resolves display names for a batch of player ids.
func (c *Client) FetchPlayerNames(ctx context.Context, puuids []string) (map[string]string, error) {
	url := c.opts.PDBaseURL + "/name-service/v2/players"
	raw, err := c.fetch(ctx, http.MethodPut, url, puuids)
	if err != nil {
		return nil, err
	}
	var entries []nameServiceEntry
	if err := decodeJSON("decode player names", raw, &entries); err != nil {
		return nil, err
	}
	names := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.TagLine != "" {
			names[e.Subject] = e.GameName + "#" + e.TagLine
		} else {
			names[e.Subject] = e.GameName
		}
	}
	return names, nil
}

// PlayerRank is the competitive standing resolved during the init pass.
type PlayerRank struct {
	Tier            int
	RankRating      int
	LeaderboardRank int // zero when not on the leaderboard
}

// FetchPlayerRank returns the most recent competitive standing for a
// player. Players with no ranked history come back as tier zero.
func (c *Client) FetchPlayerRank(ctx context.Context, puuid string) (PlayerRank, error) {
	url := fmt.Sprintf(
		"%s/mmr/v1/players/%s/competitiveupdates?startIndex=0&endIndex=1&queue=competitive",
		c.opts.PDBaseURL, puuid)
	raw, err := c.fetch(ctx, http.MethodGet, url, nil)
	if err != nil {
		return PlayerRank{}, err
	}
	var updates competitiveUpdates
	if err := decodeJSON("decode competitive updates", raw, &updates); err != nil {
		return PlayerRank{}, err
	}
	if len(updates.Matches) == 0 {
		return PlayerRank{}, nil
	}
	latest := updates.Matches[0]
	return PlayerRank{
		Tier:            latest.TierAfterUpdate,
		RankRating:      latest.RatingAfter,
		LeaderboardRank: latest.LeaderboardAfter,
	}, nil
}
