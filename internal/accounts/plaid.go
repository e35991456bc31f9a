package accounts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"example.com/prestige-worldwide/backend/internal/models"
)

const errorBodyLimit = 4096

// APIError: неуспешный ответ агрегатора счетов.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("plaid: status %d: %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("plaid: status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) HTTPStatusCode() int {
	return e.StatusCode
}

// PlaidClient вызывает REST API Plaid: link token, обмен public token и балансы.
type PlaidClient struct {
	clientID   string
	secret     string
	baseURL    string
	httpClient *http.Client
}

func NewPlaidClient(clientID, secret, baseURL string, httpClient *http.Client) *PlaidClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &PlaidClient{
		clientID:   strings.TrimSpace(clientID),
		secret:     strings.TrimSpace(secret),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (c *PlaidClient) Configured() bool {
	return c != nil && c.clientID != "" && c.secret != ""
}

// CreateLinkToken создает link token для клиентского виджета.
func (c *PlaidClient) CreateLinkToken(ctx context.Context, clientUserID string) (string, error) {
	var out struct {
		LinkToken string `json:"link_token"`
	}
	err := c.post(ctx, "/link/token/create", map[string]any{
		"user":          map[string]string{"client_user_id": clientUserID},
		"client_name":   "Prestige Worldwide",
		"products":      []string{"transactions"},
		"country_codes": []string{"US", "CA", "GB"},
		"language":      "en",
	}, &out)
	if err != nil {
		return "", err
	}
	return out.LinkToken, nil
}

// ExchangePublicToken меняет одноразовый public token на постоянный access token.
func (c *PlaidClient) ExchangePublicToken(ctx context.Context, publicToken string) (string, error) {
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.post(ctx, "/item/public_token/exchange", map[string]string{"public_token": publicToken}, &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("plaid: empty access token")
	}
	return out.AccessToken, nil
}

// Balances возвращает счета с текущими балансами.
func (c *PlaidClient) Balances(ctx context.Context, accessToken string) ([]models.LinkedAccount, error) {
	var out struct {
		Accounts []struct {
			Name     string  `json:"name"`
			Type     string  `json:"type"`
			Subtype  *string `json:"subtype"`
			Balances struct {
				Current         *float64 `json:"current"`
				ISOCurrencyCode *string  `json:"iso_currency_code"`
			} `json:"balances"`
		} `json:"accounts"`
	}
	if err := c.post(ctx, "/accounts/balance/get", map[string]string{"access_token": accessToken}, &out); err != nil {
		return nil, err
	}

	accounts := make([]models.LinkedAccount, 0, len(out.Accounts))
	for _, account := range out.Accounts {
		linked := models.LinkedAccount{Name: account.Name, Type: account.Type, Currency: "USD"}
		if account.Subtype != nil && *account.Subtype != "" {
			linked.Type = *account.Subtype
		}
		if account.Balances.Current != nil {
			linked.Balance = *account.Balances.Current
		}
		if account.Balances.ISOCurrencyCode != nil && *account.Balances.ISOCurrencyCode != "" {
			linked.Currency = *account.Balances.ISOCurrencyCode
		}
		accounts = append(accounts, linked)
	}
	return accounts, nil
}

func (c *PlaidClient) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("plaid: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("plaid: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("PLAID-CLIENT-ID", c.clientID)
	req.Header.Set("PLAID-SECRET", c.secret)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("plaid: request %s: %w", path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, errorBodyLimit))
		apiErr := &APIError{StatusCode: res.StatusCode, Message: strings.TrimSpace(string(raw))}
		var parsed struct {
			ErrorCode    string `json:"error_code"`
			ErrorMessage string `json:"error_message"`
		}
		if json.Unmarshal(raw, &parsed) == nil && parsed.ErrorCode != "" {
			apiErr.Code = parsed.ErrorCode
			apiErr.Message = parsed.ErrorMessage
		}
		return apiErr
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("plaid: decode %s: %w", path, err)
	}
	return nil
}
