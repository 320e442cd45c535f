package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"
)

type modelPage struct {
	Data []struct {
		ID        string    `json:"id"`
		CreatedAt time.Time `json:"created_at"`
	} `json:"data"`
	HasMore bool   `json:"has_more"`
	LastID  string `json:"last_id"`
}

// ListModels returns the Anthropic models visible to apiKey, newest first.
func ListModels(ctx context.Context, apiKey string) ([]string, error) {
	return listModels(ctx, http.DefaultClient, apiURL, apiKey)
}

func listModels(ctx context.Context, client *http.Client, baseURL, apiKey string) ([]string, error) {
	type entry struct {
		id      string
		created time.Time
	}
	var all []entry

	afterID := ""
	for {
		url := baseURL + "/models?limit=100"
		if afterID != "" {
			url += "&after_id=" + afterID
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("x-api-key", apiKey)
		req.Header.Set("anthropic-version", apiVersion)

		page, err := fetchPage(client, req)
		if err != nil {
			return nil, err
		}
		for _, m := range page.Data {
			all = append(all, entry{id: m.ID, created: m.CreatedAt})
		}
		if !page.HasMore || page.LastID == "" {
			break
		}
		afterID = page.LastID
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].created.After(all[j].created) })
	names := make([]string, len(all))
	for i, m := range all {
		names[i] = m.id
	}
	return names, nil
}

func fetchPage(client *http.Client, req *http.Request) (*modelPage, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("failed to fetch models: %s - %s", resp.Status, string(body))
	}

	var page modelPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, err
	}
	return &page, nil
}
