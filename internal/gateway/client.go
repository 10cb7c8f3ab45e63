package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"memoji/internal/utils/logger"
)

// Segment is one piece of a platform message: plain text or an image.
type Segment struct {
	Type string            `json:"type"`
	Data map[string]string `json:"data"`
}

// Message is an ordered list of segments.
type Message []Segment

// Text builds a plain-text segment
func Text(text string) Segment {
	return Segment{Type: "text", Data: map[string]string{"text": text}}
}

// ImageURL builds an image segment the gateway fetches itself
func ImageURL(url string) Segment {
	return Segment{Type: "image", Data: map[string]string{"file": url}}
}

// ImageBytes builds an image segment with an inline base64 payload
func ImageBytes(data []byte) Segment {
	return Segment{Type: "image", Data: map[string]string{
		"file": "base64://" + base64.StdEncoding.EncodeToString(data),
	}}
}

// GroupMember is the platform's view of one group membership.
type GroupMember struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"` // owner, admin, member
}

// IsAdmin reports whether the member administrates the group
func (m *GroupMember) IsAdmin() bool {
	return m != nil && (m.Role == "owner" || m.Role == "admin")
}

// Client talks to the OneBot-compatible HTTP API of the messaging
// platform. It is the only component that knows the wire protocol.
type Client struct {
	apiBase     string
	accessToken string
	http        *http.Client
	log         *logger.Logger
}

func NewClient(apiBase, accessToken string) *Client {
	return &Client{
		apiBase:     apiBase,
		accessToken: accessToken,
		http:        &http.Client{Timeout: 10 * time.Second},
		log:         logger.New("gateway"),
	}
}

type apiResponse struct {
	Status  string          `json:"status"`
	Retcode int             `json:"retcode"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) call(ctx context.Context, action string, params interface{}, out interface{}) error {
	body, err := json.Marshal(params)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/%s", c.apiBase, action), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.log.Error("Gateway call %s failed", err, action)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.log.Error("Gateway call %s rejected", fmt.Errorf("status %d", resp.StatusCode), action)
	}

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return c.log.Error("Gateway call %s returned malformed JSON", err, action)
	}
	if apiResp.Status == "failed" {
		return c.log.Error("Gateway call %s failed", fmt.Errorf("retcode %d", apiResp.Retcode), action)
	}
	if out != nil && len(apiResp.Data) > 0 {
		if err := json.Unmarshal(apiResp.Data, out); err != nil {
			return c.log.Error("Gateway call %s returned malformed data", err, action)
		}
	}
	return nil
}

// SendGroupMessage delivers a message to a group chat
func (c *Client) SendGroupMessage(ctx context.Context, groupID string, msg Message) error {
	return c.call(ctx, "send_group_msg", map[string]interface{}{
		"group_id": groupID,
		"message":  msg,
	}, nil)
}

// SendPrivateMessage delivers a message to a single user
func (c *Client) SendPrivateMessage(ctx context.Context, userID string, msg Message) error {
	return c.call(ctx, "send_private_msg", map[string]interface{}{
		"user_id": userID,
		"message": msg,
	}, nil)
}

// GetGroupMemberInfo fetches one member's role in a group
func (c *Client) GetGroupMemberInfo(ctx context.Context, groupID, userID string) (*GroupMember, error) {
	var member GroupMember
	if err := c.call(ctx, "get_group_member_info", map[string]interface{}{
		"group_id": groupID,
		"user_id":  userID,
		"no_cache": false,
	}, &member); err != nil {
		return nil, err
	}
	return &member, nil
}
