package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToSnakeCase(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"User", "user"},
		{"BlogPost", "blog_post"},
		{"HTTPRequestLog", "http_request_log"},
		{"userID", "user_id"},
		{"Order2Item", "order2_item"},
		{"already_snake", "already_snake"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ToSnakeCase(tt.input))
		})
	}
}

func TestTableName(t *testing.T) {
	namer := Default()

	tests := []struct {
		input    string
		expected string
	}{
		{"User", "users"},
		{"Post", "posts"},
		{"BlogPost", "blog_posts"},
		{"Person", "people"},
		{"Category", "categories"},
		{"OrderItem", "order_items"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, namer.TableName(tt.input))
		})
	}
}

func TestPluralOverrides(t *testing.T) {
	namer := New(Config{PluralOverrides: map[string]string{
		"status":     "status_records",
		"staff":      "staff",
		"blog_datum": "blog_data_points",
	}}, nil)

	assert.Equal(t, "status_records", namer.TableName("Status"))
	assert.Equal(t, "order_status_records", namer.TableName("OrderStatus"))
	assert.Equal(t, "staff", namer.TableName("Staff"))
	assert.Equal(t, "blog_data_points", namer.TableName("BlogDatum"))
}

func TestIsValidName(t *testing.T) {
	valid := []string{"user", "_private", "Post2", "camelCase", "__typename"}
	for _, name := range valid {
		assert.True(t, IsValidName(name), name)
	}
	invalid := []string{"", "2fast", "with-dash", "with space", "dot.ted"}
	for _, name := range invalid {
		assert.False(t, IsValidName(name), name)
	}
}

func TestIsReservedName(t *testing.T) {
	assert.True(t, IsReservedName("__typename"))
	assert.True(t, IsReservedName("__Schema"))
	assert.False(t, IsReservedName("_private"))
	assert.False(t, IsReservedName("user"))
}
