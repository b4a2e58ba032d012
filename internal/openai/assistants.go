// ABOUTME: Assistant lifecycle operations (create/list/update/delete)
// ABOUTME: Used by the assistant-admin CLI, never on the message hot path

package openai

import (
	"context"
	"net/http"
	"strconv"
)

// Assistant is the API's assistant object, reduced to the fields the admin
// tooling cares about.
type Assistant struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Model        string `json:"model"`
	Instructions string `json:"instructions"`
	CreatedAt    int64  `json:"created_at"`
}

type assistantList struct {
	Data []*Assistant `json:"data"`
}

type deletedObject struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// CreateAssistant registers a new assistant with the given name and
// instruction prompt, using the client's configured model.
func (c *Client) CreateAssistant(ctx context.Context, name, instructions string) (*Assistant, error) {
	body := map[string]any{
		"name":         name,
		"instructions": instructions,
		"model":        c.model,
	}
	var assistant Assistant
	if err := c.do(ctx, http.MethodPost, "/v1/assistants", body, &assistant); err != nil {
		return nil, err
	}
	c.logger.Info("created assistant", "assistant_id", assistant.ID, "name", name)
	return &assistant, nil
}

// GetAssistant fetches one assistant by ID.
func (c *Client) GetAssistant(ctx context.Context, assistantID string) (*Assistant, error) {
	var assistant Assistant
	if err := c.do(ctx, http.MethodGet, "/v1/assistants/"+assistantID, nil, &assistant); err != nil {
		return nil, err
	}
	return &assistant, nil
}

// ListAssistants returns up to limit assistants, newest first.
// A non-positive limit falls back to the API default of 20.
func (c *Client) ListAssistants(ctx context.Context, limit int) ([]*Assistant, error) {
	path := "/v1/assistants"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var list assistantList
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list.Data, nil
}

// UpdateAssistant replaces an assistant's instruction prompt.
func (c *Client) UpdateAssistant(ctx context.Context, assistantID, instructions string) (*Assistant, error) {
	body := map[string]any{
		"instructions": instructions,
	}
	var assistant Assistant
	if err := c.do(ctx, http.MethodPost, "/v1/assistants/"+assistantID, body, &assistant); err != nil {
		return nil, err
	}
	c.logger.Info("updated assistant", "assistant_id", assistantID)
	return &assistant, nil
}

// DeleteAssistant removes an assistant by ID.
func (c *Client) DeleteAssistant(ctx context.Context, assistantID string) error {
	var deleted deletedObject
	if err := c.do(ctx, http.MethodDelete, "/v1/assistants/"+assistantID, nil, &deleted); err != nil {
		return err
	}
	c.logger.Info("deleted assistant", "assistant_id", assistantID)
	return nil
}
