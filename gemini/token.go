// Package gemini counts tokens with the Gemini local tokenizer so chunks
// can be kept within an embedding model's input budget.
package gemini

import (
	"context"
	"sync"

	"github.com/fwojciec/docindex"
	"google.golang.org/genai"
	"google.golang.org/genai/tokenizer"
)

// DefaultModel is the model whose tokenizer is used when none is given.
const DefaultModel = "gemini-2.0-flash"

var _ docindex.TokenCounter = (*TokenCounter)(nil)

// TokenCounter counts tokens using the Gemini tokenizer. The tokenizer
// vocabulary is loaded on first use.
type TokenCounter struct {
	model string

	once sync.Once
	tok  *tokenizer.LocalTokenizer
	err  error
}

// NewTokenCounter creates a new TokenCounter for the given model.
func NewTokenCounter(model string) *TokenCounter {
	if model == "" {
		model = DefaultModel
	}
	return &TokenCounter{model: model}
}

func (tc *TokenCounter) tokenizer() (*tokenizer.LocalTokenizer, error) {
	tc.once.Do(func() {
		tc.tok, tc.err = tokenizer.NewLocalTokenizer(tc.model)
	})
	return tc.tok, tc.err
}

// CountTokens counts the number of tokens in the given text.
func (tc *TokenCounter) CountTokens(ctx context.Context, text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, docindex.ErrCanceled(err)
	}

	tok, err := tc.tokenizer()
	if err != nil {
		return 0, docindex.Errorf(docindex.EINTERNAL, "loading tokenizer for %s: %v", tc.model, err)
	}

	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}

	result, err := tok.CountTokens(contents, nil)
	if err != nil {
		return 0, err
	}

	return int(result.TotalTokens), nil
}
