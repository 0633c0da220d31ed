package blocks

import (
	"errors"
	"fmt"
)

var (
	ErrBlockNotFound      = errors.New("block not found")
	ErrUnknownBlockType   = errors.New("unknown block type")
	ErrOutputAndPrevious  = errors.New("block cannot have both an output and a previous connection")
	ErrNotConnected       = errors.New("connection is not connected")
	ErrConnectionNotInDB  = errors.New("unable to find connection in connection db")
	ErrConnectionInDB     = errors.New("connection already in connection db")
	ErrDisposed           = errors.New("block has been disposed")
	ErrForeignConnection  = errors.New("connection belongs to a different block")
	ErrDuplicateInput     = errors.New("duplicate input name")
	ErrFieldValue         = errors.New("invalid field value")
	ErrVariableNotFound   = errors.New("variable not found")
	ErrVariableExists     = errors.New("variable already exists")
	ErrVariableTypeClash  = errors.New("variable name already used by a variable of a different type")
	ErrProcedureNotFound  = errors.New("procedure not found")
	ErrIllegalName        = errors.New("illegal identifier")
	ErrDuplicateArgument  = errors.New("duplicate argument name")
	ErrNoMutator          = errors.New("block has no mutator")
	ErrMissingConnection  = errors.New("block has no matching connection")
	ErrShadowHasNoConnect = errors.New("shadow block has no connection for the slot")
)

// Reason is the outcome of a connection compatibility check.
type Reason int

const (
	ReasonOK Reason = iota
	ReasonTargetNull
	ReasonSelfConnection
	ReasonWrongType
	ReasonDifferentWorkspaces
	ReasonShadowParent
	ReasonChecksFailed
	ReasonCircular
)

func (r Reason) String() string {
	switch r {
	case ReasonOK:
		return "ok"
	case ReasonTargetNull:
		return "target connection is null"
	case ReasonSelfConnection:
		return "attempted to connect a block to itself"
	case ReasonWrongType:
		return "attempt to connect incompatible types"
	case ReasonDifferentWorkspaces:
		return "blocks not on same workspace"
	case ReasonShadowParent:
		return "connecting non-shadow to shadow block"
	case ReasonChecksFailed:
		return "connection checks failed"
	case ReasonCircular:
		return "block would become its own ancestor"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// ConnectError is returned by Connect when the pair fails a structural check.
type ConnectError struct {
	Reason Reason
}

func (e *ConnectError) Error() string {
	return "connect: " + e.Reason.String()
}

// SchemaError reports an author-time problem in a block definition or a
// serialized block, naming the block type and the offending field.
type SchemaError struct {
	BlockType string
	Field     string
	Msg       string
}

func (e *SchemaError) Error() string {
	switch {
	case e.BlockType != "" && e.Field != "":
		return fmt.Sprintf("block %q: %s: %s", e.BlockType, e.Field, e.Msg)
	case e.BlockType != "":
		return fmt.Sprintf("block %q: %s", e.BlockType, e.Msg)
	default:
		return e.Msg
	}
}

func schemaErr(blockType, field, format string, args ...any) *SchemaError {
	return &SchemaError{BlockType: blockType, Field: field, Msg: fmt.Sprintf(format, args...)}
}

// UnknownBlockError is returned when no definition exists for a type.
type UnknownBlockError struct {
	Type string
}

func (e *UnknownBlockError) Error() string {
	return fmt.Sprintf("unknown block type %q", e.Type)
}

func (e *UnknownBlockError) Unwrap() error { return ErrUnknownBlockType }
