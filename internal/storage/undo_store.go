package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// UndoNode represents a single undo history entry.
type UndoNode struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspaceId"`
	ParentID    *string   `json:"parentId"`
	Label       string    `json:"label"`
	SnapshotXML string    `json:"snapshotXml"`
	CreatedAt   time.Time `json:"createdAt"`
}

// UndoTree is the full history of one workspace.
type UndoTree struct {
	Nodes     []UndoNode `json:"nodes"`
	CurrentID string     `json:"currentId"`
	RootID    string     `json:"rootId"`
}

// MaxUndoNodes bounds the history kept per workspace.
const MaxUndoNodes = 40

// UndoStore keeps a tree of workspace XML snapshots in SQLite. Undoing
// moves the current pointer to the parent; saving after an undo starts a
// new branch.
type UndoStore struct {
	db *DB
}

func NewUndoStore(db *DB) *UndoStore {
	return &UndoStore{db: db}
}

// LoadTree returns the full undo tree for a workspace, or nil when it has
// no history.
func (s *UndoStore) LoadTree(workspaceID string) (*UndoTree, error) {
	rows, err := s.db.Conn().Query(
		`SELECT id, workspace_id, parent_id, label, snapshot_xml, created_at
		 FROM undo_nodes WHERE workspace_id = ? ORDER BY created_at ASC`, workspaceID,
	)
	if err != nil {
		return nil, fmt.Errorf("load undo nodes: %w", err)
	}
	defer rows.Close()

	var nodes []UndoNode
	var rootID string
	for rows.Next() {
		var n UndoNode
		if err := rows.Scan(&n.ID, &n.WorkspaceID, &n.ParentID, &n.Label, &n.SnapshotXML, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan undo node: %w", err)
		}
		if n.ParentID == nil {
			rootID = n.ID
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(nodes) == 0 {
		return nil, nil
	}

	var currentID string
	err = s.db.Conn().QueryRow(
		`SELECT current_node_id FROM undo_state WHERE workspace_id = ?`, workspaceID,
	).Scan(&currentID)
	if err != nil {
		currentID = rootID
	}

	return &UndoTree{
		Nodes:     nodes,
		CurrentID: currentID,
		RootID:    rootID,
	}, nil
}

// PushNode stores a snapshot under parentID (empty for a root) and makes it
// current.
func (s *UndoStore) PushNode(workspaceID, nodeID, parentID, label, snapshotXML string) (*UndoNode, error) {
	now := time.Now()

	var pID *string
	if parentID != "" {
		pID = &parentID
	}

	_, err := s.db.Conn().Exec(
		`INSERT INTO undo_nodes (id, workspace_id, parent_id, label, snapshot_xml, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		nodeID, workspaceID, pID, label, snapshotXML, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert undo node: %w", err)
	}

	_, err = s.db.Conn().Exec(
		`INSERT INTO undo_state (workspace_id, current_node_id) VALUES (?, ?)
		 ON CONFLICT(workspace_id) DO UPDATE SET current_node_id = excluded.current_node_id`,
		workspaceID, nodeID,
	)
	if err != nil {
		return nil, fmt.Errorf("update undo state: %w", err)
	}

	s.pruneIfNeeded(workspaceID, MaxUndoNodes)

	node := &UndoNode{
		ID:          nodeID,
		WorkspaceID: workspaceID,
		ParentID:    pID,
		Label:       label,
		SnapshotXML: snapshotXML,
		CreatedAt:   now,
	}
	return node, nil
}

// GoTo updates the current position pointer.
func (s *UndoStore) GoTo(workspaceID, nodeID string) error {
	_, err := s.db.Conn().Exec(
		`INSERT INTO undo_state (workspace_id, current_node_id) VALUES (?, ?)
		 ON CONFLICT(workspace_id) DO UPDATE SET current_node_id = excluded.current_node_id`,
		workspaceID, nodeID,
	)
	return err
}

// ClearWorkspace removes all undo data for a workspace.
func (s *UndoStore) ClearWorkspace(workspaceID string) error {
	_, _ = s.db.Conn().Exec(`DELETE FROM undo_state WHERE workspace_id = ?`, workspaceID)
	_, err := s.db.Conn().Exec(`DELETE FROM undo_nodes WHERE workspace_id = ?`, workspaceID)
	return err
}

// pruneIfNeeded removes oldest nodes when count exceeds maxNodes.
func (s *UndoStore) pruneIfNeeded(workspaceID string, maxNodes int) {
	var count int
	s.db.Conn().QueryRow(`SELECT COUNT(*) FROM undo_nodes WHERE workspace_id = ?`, workspaceID).Scan(&count)
	if count <= maxNodes {
		return
	}

	toDelete := count - maxNodes

	// Get current node BEFORE opening rows cursor (avoid nested query deadlock)
	var currentID string
	s.db.Conn().QueryRow(`SELECT current_node_id FROM undo_state WHERE workspace_id = ?`, workspaceID).Scan(&currentID)

	// Collect IDs to delete FIRST (close rows before doing any writes)
	rows, err := s.db.Conn().Query(
		`SELECT id FROM undo_nodes WHERE workspace_id = ?
		 ORDER BY created_at ASC LIMIT ?`, workspaceID, toDelete,
	)
	if err != nil {
		return
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		if id != currentID {
			ids = append(ids, id)
		}
	}
	rows.Close()

	// Now process deletions (no open rows cursor)
	for _, id := range ids {
		var parentID sql.NullString
		s.db.Conn().QueryRow(`SELECT parent_id FROM undo_nodes WHERE id = ?`, id).Scan(&parentID)

		if parentID.Valid {
			s.db.Conn().Exec(
				`UPDATE undo_nodes SET parent_id = ? WHERE parent_id = ?`,
				parentID.String, id,
			)
		} else {
			s.db.Conn().Exec(
				`UPDATE undo_nodes SET parent_id = NULL WHERE parent_id = ?`, id,
			)
		}

		s.db.Conn().Exec(`DELETE FROM undo_nodes WHERE id = ?`, id)
	}
}

// Current returns the node the workspace currently sits on.
func (s *UndoStore) Current(workspaceID string) (*UndoNode, error) {
	var id string
	err := s.db.Conn().QueryRow(`SELECT current_node_id FROM undo_state WHERE workspace_id = ?`, workspaceID).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("undo history for %s: %w", workspaceID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return s.node(id)
}

// Undo moves to the parent of the current node and returns it.
func (s *UndoStore) Undo(workspaceID string) (*UndoNode, error) {
	cur, err := s.Current(workspaceID)
	if err != nil {
		return nil, err
	}
	if cur.ParentID == nil {
		return nil, fmt.Errorf("nothing to undo: %w", ErrNotFound)
	}
	parent, err := s.node(*cur.ParentID)
	if err != nil {
		return nil, err
	}
	return parent, s.GoTo(workspaceID, parent.ID)
}

// Redo moves to the newest child of the current node and returns it.
func (s *UndoStore) Redo(workspaceID string) (*UndoNode, error) {
	cur, err := s.Current(workspaceID)
	if err != nil {
		return nil, err
	}
	var childID string
	err = s.db.Conn().QueryRow(
		`SELECT id FROM undo_nodes WHERE parent_id = ? ORDER BY created_at DESC LIMIT 1`, cur.ID,
	).Scan(&childID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("nothing to redo: %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	child, err := s.node(childID)
	if err != nil {
		return nil, err
	}
	return child, s.GoTo(workspaceID, child.ID)
}

func (s *UndoStore) node(id string) (*UndoNode, error) {
	var n UndoNode
	err := s.db.Conn().QueryRow(
		`SELECT id, workspace_id, parent_id, label, snapshot_xml, created_at FROM undo_nodes WHERE id = ?`, id,
	).Scan(&n.ID, &n.WorkspaceID, &n.ParentID, &n.Label, &n.SnapshotXML, &n.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("undo node %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get undo node: %w", err)
	}
	return &n, nil
}
