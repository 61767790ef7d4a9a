package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// JSONB is a free-form object column: jsonb on postgres, json on mysql,
// text elsewhere. A NULL column scans to an empty map.
type JSONB map[string]any

func (j JSONB) Value() (driver.Value, error) {
	if len(j) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(map[string]any(j))
	if err != nil {
		return nil, fmt.Errorf("encode jsonb: %w", err)
	}
	return string(raw), nil
}

func (j *JSONB) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*j = JSONB{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("scan jsonb: unsupported source %T", src)
	}
	out := JSONB{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("scan jsonb: %w", err)
	}
	*j = out
	return nil
}

var jsonColumnTypes = map[string]string{
	"postgres": "JSONB",
	"mysql":    "JSON",
}

func (JSONB) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if t, ok := jsonColumnTypes[db.Dialector.Name()]; ok {
		return t
	}
	return "TEXT"
}
