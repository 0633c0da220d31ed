package domain

import "time"

// Workspace is a stored block program. XML holds the serialized block
// graph; Target names the default code generator.
type Workspace struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	XML          string    `json:"xml"`
	Target       string    `json:"target"`
	ScheduleMode string    `json:"scheduleMode"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type WorkspaceStore interface {
	CreateWorkspace(ws *Workspace) error
	GetWorkspace(id string) (*Workspace, error)
	GetWorkspaceByName(name string) (*Workspace, error)
	ListWorkspaces() ([]Workspace, error)
	UpdateWorkspace(ws *Workspace) error
	DeleteWorkspace(id string) error
}
