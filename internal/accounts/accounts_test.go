package accounts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	userID uuid.UUID
	sealed []byte
	calls  int
}

func (r *recordingStore) Insert(_ context.Context, userID uuid.UUID, _ string, sealed []byte) (uuid.UUID, error) {
	r.calls++
	r.userID = userID
	r.sealed = sealed
	return uuid.New(), nil
}

func testKey() string {
	return base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
}

func fakePlaid(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "client-id", r.Header.Get("PLAID-CLIENT-ID"))
		require.Equal(t, "plaid-secret", r.Header.Get("PLAID-SECRET"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/link/token/create":
			require.Equal(t, "Prestige Worldwide", body["client_name"])
			_, _ = io.WriteString(w, `{"link_token":"link-sandbox-123"}`)
		case "/item/public_token/exchange":
			if body["public_token"] == "expired" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, `{"error_code":"INVALID_PUBLIC_TOKEN","error_message":"provided public token is expired"}`)
				return
			}
			_, _ = io.WriteString(w, `{"access_token":"access-sandbox-abc","item_id":"item-1"}`)
		case "/accounts/balance/get":
			require.Equal(t, "access-sandbox-abc", body["access_token"])
			_, _ = io.WriteString(w, `{"accounts":[
				{"name":"Plaid Checking","type":"depository","subtype":"checking","balances":{"current":110.5,"iso_currency_code":"USD"}},
				{"name":"Plaid RRSP","type":"investment","subtype":null,"balances":{"current":null,"iso_currency_code":null}}
			]}`)
		default:
			http.NotFound(w, r)
		}
	}))
}

// TestSealerRoundTrip проверяет шифрование токена и отказ на чужом ключе.
func TestSealerRoundTrip(t *testing.T) {
	sealer, err := NewSealer(testKey())
	require.NoError(t, err)

	sealed, err := sealer.Seal([]byte("access-sandbox-abc"))
	require.NoError(t, err)
	require.NotContains(t, string(sealed), "access-sandbox-abc")

	opened, err := sealer.Open(sealed)
	require.NoError(t, err)
	require.Equal(t, "access-sandbox-abc", string(opened))

	other, err := NewSealer(base64.StdEncoding.EncodeToString([]byte("fedcba9876543210fedcba9876543210")))
	require.NoError(t, err)
	_, err = other.Open(sealed)
	require.ErrorIs(t, err, ErrUnsealable)

	_, err = sealer.Open([]byte("short"))
	require.ErrorIs(t, err, ErrUnsealable)
}

func TestNewSealerRejectsBadKey(t *testing.T) {
	_, err := NewSealer("%%%")
	require.Error(t, err)

	_, err = NewSealer(base64.StdEncoding.EncodeToString([]byte("too-short")))
	require.Error(t, err)
}

// TestServiceMockMode проверяет демонстрационный режим без ключей агрегатора.
func TestServiceMockMode(t *testing.T) {
	service := NewService(NewPlaidClient("", "", "https://sandbox.plaid.com", nil), nil, nil, nil)

	token, err := service.CreateLinkToken(context.Background(), uuid.Nil)
	require.NoError(t, err)
	require.True(t, token.Mock)

	accounts, err := service.Exchange(context.Background(), uuid.Nil, "")
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	require.Equal(t, "401(k)", accounts[0].Type)
	require.Equal(t, float64(62000), accounts[1].Balance)
	require.Equal(t, "TD Bank", *accounts[1].Institution)
}

// TestServiceExchangeStoresSealedToken проверяет обмен токена и сохранение в зашифрованном виде.
func TestServiceExchangeStoresSealedToken(t *testing.T) {
	server := fakePlaid(t)
	defer server.Close()

	sealer, err := NewSealer(testKey())
	require.NoError(t, err)
	store := &recordingStore{}
	service := NewService(NewPlaidClient("client-id", "plaid-secret", server.URL, server.Client()), sealer, store, nil)

	userID := uuid.New()
	token, err := service.CreateLinkToken(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, "link-sandbox-123", token.LinkToken)

	accounts, err := service.Exchange(context.Background(), userID, "public-sandbox-1")
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	require.Equal(t, "checking", accounts[0].Type)
	require.Equal(t, 110.5, accounts[0].Balance)
	require.Equal(t, "investment", accounts[1].Type)
	require.Equal(t, "USD", accounts[1].Currency)

	require.Equal(t, 1, store.calls)
	require.Equal(t, userID, store.userID)
	opened, err := sealer.Open(store.sealed)
	require.NoError(t, err)
	require.Equal(t, "access-sandbox-abc", string(opened))
}

// TestServiceExchangeErrors проверяет пустой и просроченный public token.
func TestServiceExchangeErrors(t *testing.T) {
	server := fakePlaid(t)
	defer server.Close()

	store := &recordingStore{}
	service := NewService(NewPlaidClient("client-id", "plaid-secret", server.URL, server.Client()), nil, store, nil)

	_, err := service.Exchange(context.Background(), uuid.New(), " ")
	require.ErrorIs(t, err, ErrPublicTokenRequired)

	_, err = service.Exchange(context.Background(), uuid.New(), "expired")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "INVALID_PUBLIC_TOKEN", apiErr.Code)
	require.Equal(t, http.StatusBadRequest, apiErr.HTTPStatusCode())

	// Без ключа шифрования токен не сохраняется.
	_, err = service.Exchange(context.Background(), uuid.New(), "public-sandbox-1")
	require.NoError(t, err)
	require.Zero(t, store.calls)
}
