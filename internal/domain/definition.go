package domain

import "time"

// BlockDefinition is a custom block type stored as its JSON schema. Source
// records where it came from: "user" or the URL of a schema pack.
type BlockDefinition struct {
	Type      string    `json:"type"`
	JSON      string    `json:"json"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type DefinitionStore interface {
	PutDefinition(d *BlockDefinition) error
	GetDefinition(blockType string) (*BlockDefinition, error)
	ListDefinitions() ([]BlockDefinition, error)
	DeleteDefinition(blockType string) error
}
