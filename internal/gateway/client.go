package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"assinatura-bot/internal/dates"
	"assinatura-bot/internal/engine"
)

// expiryHintRe matches the nickname suffix the community uses to carry the
// expiry date, e.g. "Fulano | 31/12/2025".
var expiryHintRe = regexp.MustCompile(`\s*\|\s*(\d{2}/\d{2}/\d{4})\s*$`)

// Client talks to the community gateway REST API. It is the concrete
// provider behind the engine's Membership, Notifier and Reporter
// collaborators.
type Client struct {
	BaseURL         string
	Token           string
	GuildID         string
	RoleName        string
	ReportChannelID string
	HTTPClient      *http.Client
}

var (
	_ engine.Membership = (*Client)(nil)
	_ engine.Notifier   = (*Client)(nil)
	_ engine.Reporter   = (*Client)(nil)
)

func NewClient(baseURL, token, guildID, roleName, reportChannelID string) *Client {
	return &Client{
		BaseURL:         baseURL,
		Token:           token,
		GuildID:         guildID,
		RoleName:        roleName,
		ReportChannelID: reportChannelID,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) doRequest(ctx context.Context, method, endpoint string, body interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	fullURL := fmt.Sprintf("%s%s", c.BaseURL, endpoint)
	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.Token))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("gateway error: %s (status: %d)", string(respBody), resp.StatusCode)
	}

	return respBody, nil
}

// ListTrackedSubjects fetches the guild member list and extracts each
// member's expiry hint from the nickname suffix. Members without the suffix
// come back with an empty hint (untracked).
func (c *Client) ListTrackedSubjects(ctx context.Context) ([]engine.Subject, error) {
	resp, err := c.doRequest(ctx, "GET", fmt.Sprintf("/guilds/%s/members", c.GuildID), nil)
	if err != nil {
		return nil, err
	}

	var members []Member
	if err := json.Unmarshal(resp, &members); err != nil {
		return nil, fmt.Errorf("failed to unmarshal member list: %w", err)
	}

	subjects := make([]engine.Subject, 0, len(members))
	for _, m := range members {
		subjects = append(subjects, engine.Subject{
			ID:          m.ID,
			DisplayName: m.displayName(),
			RawExpiry:   ExtractExpiryHint(m.Nick),
		})
	}
	return subjects, nil
}

// SendDirectNotice delivers a direct message to one subject.
func (c *Client) SendDirectNotice(ctx context.Context, subjectID int64, category engine.Category, message string) error {
	_, err := c.doRequest(ctx, "POST", fmt.Sprintf("/users/%d/messages", subjectID), MessageRequest{
		Content: message,
	})
	if err != nil {
		return fmt.Errorf("direct notice to %d (%s): %w", subjectID, category, err)
	}
	return nil
}

// SendChannelNotice posts to the configured report channel.
func (c *Client) SendChannelNotice(ctx context.Context, message string) error {
	_, err := c.doRequest(ctx, "POST", fmt.Sprintf("/channels/%s/messages", c.ReportChannelID), MessageRequest{
		Content: message,
	})
	return err
}

// RevokeAccess removes the member role.
func (c *Client) RevokeAccess(ctx context.Context, subjectID int64, reason string) error {
	_, err := c.doRequest(ctx, "DELETE",
		fmt.Sprintf("/guilds/%s/members/%d/roles/%s?reason=%s", c.GuildID, subjectID, c.RoleName, url.QueryEscape(reason)), nil)
	return err
}

// RemoveMembership kicks the member from the community.
func (c *Client) RemoveMembership(ctx context.Context, subjectID int64, reason string) error {
	_, err := c.doRequest(ctx, "DELETE",
		fmt.Sprintf("/guilds/%s/members/%d?reason=%s", c.GuildID, subjectID, url.QueryEscape(reason)), nil)
	return err
}

// GrantAccess rewrites the nickname date suffix and adds the member role.
// The nickname carries the expiry hint the reconciliation loop reads back.
func (c *Client) GrantAccess(ctx context.Context, subjectID int64, displayName string, expiresAt time.Time) error {
	nick := fmt.Sprintf("%s | %s", CleanNickname(displayName), expiresAt.Format(dates.DisplayFormat))
	_, err := c.doRequest(ctx, "PATCH", fmt.Sprintf("/guilds/%s/members/%d", c.GuildID, subjectID), NicknameRequest{
		Nick: nick,
	})
	if err != nil {
		return fmt.Errorf("set nickname: %w", err)
	}

	_, err = c.doRequest(ctx, "PUT",
		fmt.Sprintf("/guilds/%s/members/%d/roles/%s", c.GuildID, subjectID, c.RoleName), nil)
	if err != nil {
		return fmt.Errorf("add role: %w", err)
	}
	return nil
}

// ExtractExpiryHint pulls the date out of a nickname suffix. Empty result
// means no hint.
func ExtractExpiryHint(nick string) string {
	m := expiryHintRe.FindStringSubmatch(nick)
	if m == nil {
		return ""
	}
	return m[1]
}

// CleanNickname strips an existing date suffix so renewals do not stack
// dates.
func CleanNickname(nick string) string {
	return strings.TrimSpace(expiryHintRe.ReplaceAllString(nick, ""))
}
