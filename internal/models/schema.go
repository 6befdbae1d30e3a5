package models

import "fmt"

// Kind is the primitive type a schema column holds.
type Kind int

const (
	KindInt       Kind = iota // integer
	KindString                // free text
	KindSeconds               // duration stored as fractional seconds
	KindBool                  // boolean, true literal is "true" (any case)
	KindTimestamp             // nullable timestamp, empty cell means null
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindSeconds:
		return "seconds"
	case KindBool:
		return "bool"
	case KindTimestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// Field keys understood by the row codec.
const (
	FieldID               = "id"
	FieldName             = "name"
	FieldElapsed          = "elapsed"
	FieldIsRunning        = "is_running"
	FieldCurrentStartTime = "current_start_time"
	FieldStartDateTime    = "start_date_time"
	FieldIsFinished       = "is_finished"
	FieldFinishedDateTime = "finished_date_time"
	FieldIsDeleted        = "is_deleted"
)

// Field is one column: Key selects the task attribute, Header is the label written to the header row.
type Field struct {
	Key    string
	Header string
	Kind   Kind
}

// Schema is an ordered column layout. Column order is the row order.
type Schema struct {
	Fields []Field
}

// TaskSchema is the default layout of the backing sheet.
func TaskSchema() Schema {
	return Schema{Fields: []Field{
		{Key: FieldID, Header: "Task ID", Kind: KindInt},
		{Key: FieldName, Header: "Task Name", Kind: KindString},
		{Key: FieldElapsed, Header: "Total Time (seconds)", Kind: KindSeconds},
		{Key: FieldIsRunning, Header: "Running", Kind: KindBool},
		{Key: FieldCurrentStartTime, Header: "Current Start", Kind: KindTimestamp},
		{Key: FieldStartDateTime, Header: "Started At", Kind: KindTimestamp},
		{Key: FieldIsFinished, Header: "Finished", Kind: KindBool},
		{Key: FieldFinishedDateTime, Header: "Finished At", Kind: KindTimestamp},
		{Key: FieldIsDeleted, Header: "Deleted", Kind: KindBool},
	}}
}

// Headers returns the canonical header row.
func (s Schema) Headers() []string {
	headers := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		headers[i] = f.Header
	}
	return headers
}

// Width is the number of columns.
func (s Schema) Width() int {
	return len(s.Fields)
}

// Validate rejects empty schemas, unknown keys and duplicated keys.
func (s Schema) Validate() error {
	if len(s.Fields) == 0 {
		return fmt.Errorf("schema has no fields")
	}

	known := map[string]Kind{
		FieldID:               KindInt,
		FieldName:             KindString,
		FieldElapsed:          KindSeconds,
		FieldIsRunning:        KindBool,
		FieldCurrentStartTime: KindTimestamp,
		FieldStartDateTime:    KindTimestamp,
		FieldIsFinished:       KindBool,
		FieldFinishedDateTime: KindTimestamp,
		FieldIsDeleted:        KindBool,
	}

	seen := make(map[string]bool, len(s.Fields))
	hasID := false
	for _, f := range s.Fields {
		kind, ok := known[f.Key]
		if !ok {
			return fmt.Errorf("unknown schema field %q", f.Key)
		}
		if kind != f.Kind {
			return fmt.Errorf("schema field %q must be %v, got %v", f.Key, kind, f.Kind)
		}
		if seen[f.Key] {
			return fmt.Errorf("duplicate schema field %q", f.Key)
		}
		seen[f.Key] = true
		hasID = hasID || f.Key == FieldID
	}
	if !hasID {
		return fmt.Errorf("schema must include %q", FieldID)
	}
	return nil
}
