package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// ESignClient talks to the external eSign provider. Requests are signed with
// the provider API key; the provider signs its webhooks with a separate
// shared secret checked by the webhook handler.
type ESignClient struct {
	BaseURL    string
	APIKey     string
	httpClient *http.Client
}

// NewESignClient builds a client from the environment.
func NewESignClient() *ESignClient {
	return &ESignClient{
		BaseURL: os.Getenv("ESIGN_BASE_URL"),
		APIKey:  os.Getenv("ESIGN_API_KEY"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type esignInitiateRequest struct {
	ReferenceID  string `json:"reference_id"`
	SignerName   string `json:"signer_name"`
	SignerEmail  string `json:"signer_email"`
	DocumentHash string `json:"document_hash"`
	CallbackURL  string `json:"callback_url"`
}

type esignInitiateResponse struct {
	DocumentID string `json:"document_id"`
	SigningURL string `json:"signing_url"`
	Status     string `json:"status"`
}

// InitiateResult is what the provider hands back for a new signing request.
type InitiateResult struct {
	DocumentID string
	SigningURL string
}

// Initiate sends a signing request for the contract document. Any transport
// or provider failure is wrapped in ErrProviderUnavailable so callers can
// surface it as retryable without the contract leaving DRAFT.
func (c *ESignClient) Initiate(ctx context.Context, contractID, signerName, signerEmail, documentHash string) (*InitiateResult, error) {
	payload := esignInitiateRequest{
		ReferenceID:  contractID,
		SignerName:   signerName,
		SignerEmail:  signerEmail,
		DocumentHash: documentHash,
		CallbackURL:  os.Getenv("ESIGN_CALLBACK_URL"),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, WrapError(err, "encoding esign request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v2/documents", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("X-Signature", ComputeSignature(body, c.APIKey))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: provider returned %d", ErrProviderUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("esign initiate rejected: status %d body %s", resp.StatusCode, respBody)
	}

	var parsed esignInitiateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("%w: malformed provider response", ErrProviderUnavailable)
	}
	if parsed.DocumentID == "" {
		return nil, fmt.Errorf("%w: provider response missing document id", ErrProviderUnavailable)
	}

	LogInfo("eSign initiated for contract %s, document ID: %s", contractID, parsed.DocumentID)
	return &InitiateResult{DocumentID: parsed.DocumentID, SigningURL: parsed.SigningURL}, nil
}
