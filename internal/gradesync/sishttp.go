package gradesync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

// ClientConfig configures the HTTP SIS client. OAuth2 client
// credentials are used when TokenURL is set; otherwise StaticToken is
// sent as a plain bearer token (some school systems only offer that).
type ClientConfig struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	StaticToken  string
	Timeout      time.Duration
}

type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

func NewClient(cfg ClientConfig) *Client {
	var h *http.Client
	if cfg.TokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		h = cc.Client(context.Background())
	} else {
		h = &http.Client{}
	}
	if cfg.Timeout > 0 {
		h.Timeout = cfg.Timeout
	} else {
		h.Timeout = 15 * time.Second
	}
	return &Client{http: h, baseURL: cfg.BaseURL, token: cfg.StaticToken}
}

var _ SISClient = (*Client)(nil)

func (c *Client) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.http.Do(req)
}

func (c *Client) ListColumns(ctx context.Context, courseRef string) ([]RemoteColumn, error) {
	u := fmt.Sprintf("%s/courses/%s/columns", c.baseURL, url.PathEscape(courseRef))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	res, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return nil, fmt.Errorf("list columns: %s", res.Status)
	}

	var items []struct {
		ID         string  `json:"id"`
		Label      string  `json:"label"`
		ResourceID string  `json:"resourceId"`
		ScaleMax   float64 `json:"scaleMax"`
	}
	if err := json.NewDecoder(res.Body).Decode(&items); err != nil {
		return nil, err
	}
	out := make([]RemoteColumn, 0, len(items))
	for _, it := range items {
		out = append(out, RemoteColumn{ID: it.ID, Label: it.Label, ResourceID: it.ResourceID, ScaleMax: it.ScaleMax})
	}
	return out, nil
}

func (c *Client) CreateColumn(ctx context.Context, courseRef string, reqBody CreateColumnReq) (RemoteColumn, error) {
	body, _ := json.Marshal(map[string]any{
		"label":      reqBody.Label,
		"scaleMax":   reqBody.ScaleMax,
		"resourceId": reqBody.ResourceID,
	})
	u := fmt.Sprintf("%s/courses/%s/columns", c.baseURL, url.PathEscape(courseRef))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return RemoteColumn{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.do(req)
	if err != nil {
		return RemoteColumn{}, err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return RemoteColumn{}, fmt.Errorf("create column: %s", res.Status)
	}

	var it struct {
		ID         string  `json:"id"`
		Label      string  `json:"label"`
		ResourceID string  `json:"resourceId"`
		ScaleMax   float64 `json:"scaleMax"`
	}
	if err := json.NewDecoder(res.Body).Decode(&it); err != nil {
		return RemoteColumn{}, err
	}
	return RemoteColumn{ID: it.ID, Label: it.Label, ResourceID: it.ResourceID, ScaleMax: it.ScaleMax}, nil
}

func (c *Client) PostGrade(ctx context.Context, columnID string, g GradePost) error {
	body, _ := json.Marshal(map[string]any{
		"studentNumber": g.StudentNumber,
		"grade":         g.Grade,
		"scaleMax":      g.ScaleMax,
		"timestamp":     g.Timestamp.Format(time.RFC3339),
	})
	u := fmt.Sprintf("%s/columns/%s/grades", c.baseURL, url.PathEscape(columnID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return fmt.Errorf("post grade: %s", res.Status)
	}
	return nil
}
