// Package restv2 is the provider's JSON API (boundary B). Unlike the SOAP
// side the responses here are plain JSON, but they reuse the same
// result_type/result_code/result_content discriminator.
package restv2

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/colisdesk/colisdesk/internal/models"
	"github.com/pkg/errors"
)

const (
	listByCodesPath   = "/api/api.v2/StColis/ListColis"
	requestPickupPath = "/api/api.v1/StColis/demanderEnlevement"
	bulkCreatePath    = "/api/api.v1/StColis/AjoutVMultiple"
)

// MaxBulkCreate is the provider's hard cap per AjoutVMultiple call.
const MaxBulkCreate = 50

type Client struct {
	baseURL  string
	username string
	password string
	httpc    *http.Client
}

func New(baseURL, username, password string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("rest base url is required")
	}
	if username == "" || password == "" {
		return nil, errors.New("provider credentials are required")
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		httpc: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// ListByCodes fetches enrichment fields for a batch of tracking codes in one
// request. The API wants the codes semicolon-joined in a single field.
func (c *Client) ListByCodes(ctx context.Context, codes []string) (any, error) {
	valid := make([]string, 0, len(codes))
	for _, code := range codes {
		if s := strings.TrimSpace(code); s != "" {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		return map[string]any{}, nil
	}
	return c.post(ctx, listByCodesPath, map[string]any{
		"codeBar": strings.Join(valid, ";"),
	})
}

// RequestPickup validates every pending colis for courier pickup in one shot
// and returns the raw response carrying the manifest document reference.
func (c *Client) RequestPickup(ctx context.Context) (any, error) {
	return c.post(ctx, requestPickupPath, map[string]any{})
}

func (c *Client) BulkCreate(ctx context.Context, items []models.ParcelInput) (any, error) {
	if len(items) == 0 {
		return nil, errors.New("listColis is empty")
	}
	if len(items) > MaxBulkCreate {
		return nil, errors.Errorf("listColis exceeds %d items", MaxBulkCreate)
	}
	return c.post(ctx, bulkCreatePath, map[string]any{
		"listColis": items,
	})
}

// post merges the credentials into every body (нет сессии — провайдер хочет
// логин/пароль в каждом запросе) and decodes the JSON response generically.
func (c *Client) post(ctx context.Context, path string, body map[string]any) (any, error) {
	body["Uilisateur"] = c.username
	body["Pass"] = c.password

	b, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "rest %s", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("colissimo rest http %d", resp.StatusCode)
	}

	var decoded any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.Wrap(err, "decode response")
	}
	return decoded, nil
}
