package model

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// Condition is a single filter term applied by the data source
type Condition struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value any    `json:"value"`
}

// QueryContext carries the filters and shape of record fetches.
// Any change in Key invalidates the cached store.
type QueryContext struct {
	Filters []Condition `json:"filters,omitempty"`
	GroupBy []string    `json:"group_by,omitempty"`
	Fields  []string    `json:"fields,omitempty"`
	Limit   int         `json:"limit,omitempty"`
	Offset  int         `json:"offset,omitempty"`
}

// Key returns a stable identity for the context
func (qc QueryContext) Key() string {
	data, err := sonic.ConfigStd.Marshal(qc)
	if err != nil {
		return fmt.Sprintf("%+v", qc)
	}
	return string(data)
}
