// Package enrichment holds the diagnostic content attached to an alert's
// investigation record, and the stores that persist it.
package enrichment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BlockMarkdown is the only block type produced today.
const BlockMarkdown = "markdown"

// ErrStoreClosed is returned by stores used after Close.
var ErrStoreClosed = errors.New("enrichment store is closed")

// Block is one display unit of an enrichment.
type Block struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Markdown returns a markdown block with the given text.
func Markdown(text string) Block {
	return Block{Type: BlockMarkdown, Text: text}
}

// Enrichment is an ordered list of blocks attached to one alert by one action.
type Enrichment struct {
	ID        string    `json:"id"`
	AlertKey  string    `json:"alertKey"`
	AlertName string    `json:"alertName,omitempty"`
	Action    string    `json:"action"`
	Blocks    []Block   `json:"blocks"`
	CreatedAt time.Time `json:"createdAt"`
}

// New builds an Enrichment with a fresh ID. The blocks slice is copied.
func New(alertKey, alertName, action string, blocks []Block) Enrichment {
	bs := make([]Block, len(blocks))
	copy(bs, blocks)
	return Enrichment{
		ID:        uuid.New().String(),
		AlertKey:  alertKey,
		AlertName: alertName,
		Action:    action,
		Blocks:    bs,
		CreatedAt: time.Now().UTC(),
	}
}

// Markdown renders all blocks as a single markdown document, one block per
// paragraph.
func (e Enrichment) Markdown() string {
	parts := make([]string, 0, len(e.Blocks))
	for _, b := range e.Blocks {
		parts = append(parts, b.Text)
	}
	return strings.Join(parts, "\n\n")
}

// Store persists enrichments keyed by alert.
type Store interface {
	// Add appends an enrichment to the record of its alert.
	Add(ctx context.Context, e Enrichment) error
	// List returns the enrichments recorded for an alert, oldest first.
	List(ctx context.Context, alertKey string) ([]Enrichment, error)
	Close() error
}
