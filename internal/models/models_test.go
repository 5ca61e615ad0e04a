package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatedOrderID(t *testing.T) {
	tests := []struct {
		name string
		body string
		want OrderID
	}{
		{"number", `{"id": 42}`, "42"},
		{"string", `{"id": "abc"}`, "abc"},
		{"null", `{"id": null}`, ""},
		{"missing", `{"status": "completed"}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var order CreatedOrder
			require.NoError(t, json.Unmarshal([]byte(tt.body), &order))
			assert.Equal(t, tt.want, order.ID)
		})
	}
}

func TestIDRejectsObjects(t *testing.T) {
	var order CreatedOrder
	assert.Error(t, json.Unmarshal([]byte(`{"id": {"pk": 1}}`), &order))

	var p Product
	assert.Error(t, json.Unmarshal([]byte(`{"id": [1]}`), &p))
}
