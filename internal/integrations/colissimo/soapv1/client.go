// Package soapv1 talks to the provider's SOAP endpoint. The wire format is
// SOAP 1.1 only on the surface: every <op>Result element carries a JSON
// string (их бекенд сериализует JSON внутрь XML), so the client unwraps the
// XML and hands the decoded JSON upwards.
package soapv1

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/colisdesk/colisdesk/internal/integrations/colissimo/envelope"
	"github.com/colisdesk/colisdesk/internal/models"
	"github.com/pkg/errors"
)

const actionNS = "http://tempuri.org/"

type Client struct {
	endpoint string
	username string
	password string
	httpc    *http.Client
}

// New fails when the endpoint or the credentials are missing: the provider
// silently treats unauthenticated calls as empty listings, and that must not
// happen by misconfiguration.
func New(endpoint, username, password string) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("soap endpoint url is required")
	}
	if username == "" || password == "" {
		return nil, errors.New("provider credentials are required")
	}
	return &Client{
		endpoint: endpoint,
		username: username,
		password: password,
		httpc: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

type param struct {
	name  string
	value string
}

func (c *Client) ListParcels(ctx context.Context, page int) (any, error) {
	return c.call(ctx, "ListeColis", []param{{"page", fmt.Sprintf("%d", page)}})
}

func (c *Client) GetParcel(ctx context.Context, code string) (any, error) {
	return c.call(ctx, "getColis", []param{{"code_barre", code}})
}

func (c *Client) CreateParcel(ctx context.Context, in models.ParcelInput) (any, error) {
	pic, err := json.Marshal(in)
	if err != nil {
		return nil, errors.Wrap(err, "marshal colis")
	}
	return c.call(ctx, "AjouterColis", []param{{"pic", string(pic)}})
}

func (c *Client) UpdateParcel(ctx context.Context, in models.ParcelInput) (any, error) {
	if in.Code == "" {
		return nil, errors.New("code barre is required for update")
	}
	// ModifierColis читает то "code", то "code_barre" в зависимости от версии.
	m := map[string]any{}
	b, err := json.Marshal(in)
	if err != nil {
		return nil, errors.Wrap(err, "marshal colis")
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, errors.Wrap(err, "remarshal colis")
	}
	m["code_barre"] = in.Code
	pic, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "marshal colis")
	}
	return c.call(ctx, "ModifierColis", []param{{"pic", string(pic)}})
}

func (c *Client) DeleteParcel(ctx context.Context, code string) (any, error) {
	return c.call(ctx, "SupprimerColis", []param{{"code_barre", code}})
}

func (c *Client) ListProvinces(ctx context.Context) (any, error) {
	return c.call(ctx, "listGouvernorats", nil)
}

// GetLabelPDF returns the base64 label document. The provider reuses the same
// result element for errors: a value that parses as an error envelope is one.
func (c *Client) GetLabelPDF(ctx context.Context, code string) (string, error) {
	raw, err := c.call(ctx, "getColisPdf", []param{{"code_barre", code}})
	if err != nil {
		return "", err
	}
	m, _ := raw.(map[string]any)
	switch v := m["getColisPdfResult"].(type) {
	case string:
		return v, nil
	default:
		out := envelope.Classify(v)
		if err := out.Err(); err != nil {
			return "", err
		}
		return "", errors.New("unexpected getColisPdf response shape")
	}
}

// call issues one SOAP request and returns map{"<op>Result": decoded} so the
// envelope package sees the same wrapper shape the raw API produces. The
// result text is JSON-decoded once when it parses; a non-JSON string (base64
// PDF) stays a string.
func (c *Client) call(ctx context.Context, op string, params []param) (any, error) {
	body, err := buildRequest(op, c.username, c.password, params)
	if err != nil {
		return nil, errors.Wrap(err, "build soap request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", fmt.Sprintf("%q", actionNS+op))

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "soap %s", op)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 && resp.StatusCode != http.StatusInternalServerError {
		// 500 проходит дальше: SOAP fault приходит с этим статусом.
		return nil, fmt.Errorf("colissimo soap http %d", resp.StatusCode)
	}

	text, err := extractResult(resp.Body, op)
	if err != nil {
		return nil, err
	}

	var decoded any
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		decoded = text
	}
	return map[string]any{op + "Result": decoded}, nil
}

func buildRequest(op, username, password string, params []param) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString(`<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">`)
	buf.WriteString(`<soap:Header><AuthHeader xmlns="` + actionNS + `">`)
	buf.WriteString("<Uilisateur>")
	if err := xml.EscapeText(&buf, []byte(username)); err != nil {
		return nil, err
	}
	buf.WriteString("</Uilisateur><Pass>")
	if err := xml.EscapeText(&buf, []byte(password)); err != nil {
		return nil, err
	}
	buf.WriteString("</Pass></AuthHeader></soap:Header>")
	buf.WriteString(`<soap:Body><` + op + ` xmlns="` + actionNS + `">`)
	for _, p := range params {
		buf.WriteString("<" + p.name + ">")
		if err := xml.EscapeText(&buf, []byte(p.value)); err != nil {
			return nil, err
		}
		buf.WriteString("</" + p.name + ">")
	}
	buf.WriteString(`</` + op + `></soap:Body></soap:Envelope>`)
	return buf.Bytes(), nil
}

func extractResult(r io.Reader, op string) (string, error) {
	dec := xml.NewDecoder(r)
	want := op + "Result"
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return "", fmt.Errorf("soap response has no %s element", want)
		}
		if err != nil {
			return "", errors.Wrap(err, "decode soap response")
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case want:
			var s string
			if err := dec.DecodeElement(&s, &se); err != nil {
				return "", errors.Wrap(err, "decode result element")
			}
			return s, nil
		case "faultstring":
			var s string
			_ = dec.DecodeElement(&s, &se)
			return "", fmt.Errorf("soap fault: %s", s)
		}
	}
}
