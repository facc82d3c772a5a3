// Copyright (c) 2025 The Arke Institute developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package deepinfra wraps the DeepInfra OpenAI-compatible gateway for
// JSON-mode chat completions.
package deepinfra

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultBaseURL is the OpenAI-compatible endpoint of DeepInfra.
	DefaultBaseURL = "https://api.deepinfra.com/v1/openai"
	// DefaultModel is used when no model is configured.
	DefaultModel = "meta-llama/Meta-Llama-3.1-70B-Instruct"

	// Extraction wants determinism over creativity, and a PINAX record
	// comfortably fits in the completion budget.
	extractionTemperature = 0.2
	completionTokenLimit  = 1024

	// DeepInfra pricing, USD per token.
	promptTokenPrice     = 0.075 / 1_000_000
	completionTokenPrice = 0.2 / 1_000_000
)

// ErrEmptyChoices is returned when the gateway answers 200 with no choices.
var ErrEmptyChoices = errors.New("completion carries no choices")

// Usage reports token consumption of a single completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Cost converts token usage to USD.
func (u Usage) Cost() float64 {
	return float64(u.PromptTokens)*promptTokenPrice + float64(u.CompletionTokens)*completionTokenPrice
}

// Client performs chat completions against DeepInfra.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a Client for the given gateway. Empty baseURL and model fall
// back to the DeepInfra defaults.
func New(baseURL, apiKey, model string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &Client{
		api:   openai.NewClientWithConfig(cfg),
		model: model,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// ChatJSON sends a system/user message pair in JSON mode and returns the
// raw completion content. The gateway guarantees the content is a JSON
// document, not that it matches any schema.
func (c *Client) ChatJSON(ctx context.Context, system, user string) (string, Usage, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: extractionTemperature,
		MaxTokens:   completionTokenLimit,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", Usage{}, err
	}
	if len(resp.Choices) == 0 {
		return "", Usage{}, ErrEmptyChoices
	}
	usage := Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	return resp.Choices[0].Message.Content, usage, nil
}

// StatusOf extracts the HTTP status and response body from a gateway error,
// letting callers classify failures without importing the SDK error types.
func StatusOf(err error) (status int, body string, ok bool) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode, apiErr.Message, true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		body := ""
		if reqErr.Err != nil {
			body = reqErr.Err.Error()
		}
		return reqErr.HTTPStatusCode, body, true
	}
	return 0, "", false
}
