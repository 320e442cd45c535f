package openai

import (
	"context"
	"sort"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ListModels fetches available models from an OpenAI compatible endpoint.
// When prefix is set only model IDs starting with it are returned.
func ListModels(ctx context.Context, client *openai.Client, prefix string) ([]string, error) {
	models, err := client.ListModels(ctx)
	if err != nil {
		return nil, err
	}

	var modelNames []string
	for _, m := range models.Models {
		if prefix == "" || strings.HasPrefix(m.ID, prefix) {
			modelNames = append(modelNames, m.ID)
		}
	}
	sort.Strings(modelNames)
	return modelNames, nil
}
