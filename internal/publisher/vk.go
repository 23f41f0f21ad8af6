package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bansync/internal/logger"
	"bansync/internal/models"
)

// VK posts ban announcements to a community wall through the VK API.
type VK struct {
	client  *http.Client
	apiURL  string
	token   string
	version string
	ownerID int64
}

// NewVK returns a publisher for the wall of ownerID (negative for
// communities). client may be nil.
func NewVK(client *http.Client, apiURL, token, version string, ownerID int64) *VK {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &VK{
		client:  client,
		apiURL:  strings.TrimRight(apiURL, "/"),
		token:   token,
		version: version,
		ownerID: ownerID,
	}
}

func (v *VK) Platform() models.Platform {
	return models.PlatformVK
}

type vkError struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_msg"`
}

func (e *vkError) Error() string {
	return fmt.Sprintf("vk api error %d: %s", e.Code, e.Message)
}

type vkResponse struct {
	Response json.RawMessage `json:"response"`
	Error    *vkError        `json:"error"`
}

type vkPost struct {
	PostID int64 `json:"post_id"`
}

func (v *VK) call(ctx context.Context, method string, params url.Values) (json.RawMessage, error) {
	params.Set("access_token", v.token)
	params.Set("v", v.version)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.apiURL+"/"+method, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status %d", method, resp.StatusCode)
	}

	var decoded vkResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", method, err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("%s: %w", method, decoded.Error)
	}
	return decoded.Response, nil
}

// Publish creates a wall post and returns its id.
func (v *VK) Publish(ctx context.Context, record *models.BanRecord) (int64, error) {
	raw, err := v.call(ctx, "wall.post", url.Values{
		"owner_id":   {strconv.FormatInt(v.ownerID, 10)},
		"from_group": {"1"},
		"message":    {plainText(record)},
	})
	if err != nil {
		return 0, fmt.Errorf("publish ban %d to vk: %w", record.ID, err)
	}

	var post vkPost
	if err := json.Unmarshal(raw, &post); err != nil || post.PostID <= 0 {
		return 0, fmt.Errorf("publish ban %d to vk: response has no post_id: %s", record.ID, string(raw))
	}
	logger.Infof("Published ban %d to VK as post %d", record.ID, post.PostID)
	return post.PostID, nil
}

// PublishDecision edits the wall post in place. VK has no comment post, so
// the returned id is always 0.
func (v *VK) PublishDecision(ctx context.Context, record *models.BanRecord, postID int64) (int64, error) {
	_, err := v.call(ctx, "wall.edit", url.Values{
		"owner_id": {strconv.FormatInt(v.ownerID, 10)},
		"post_id":  {strconv.FormatInt(postID, 10)},
		"message":  {plainText(record)},
	})
	if err != nil {
		return 0, fmt.Errorf("update vk post %d for ban %d: %w", postID, record.ID, err)
	}
	return 0, nil
}
