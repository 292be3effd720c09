// ABOUTME: Schema-based HTML renderer for plugin resources.
// ABOUTME: Builds a table from a ResourceSchema and rows returned by a DataProvider.

package admin

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/2389/vault/plugins/core"
)

// RenderResourceList generates a table from a ResourceSchema
func RenderResourceList(schema core.ResourceSchema, resources []map[string]any) string {
	var sb strings.Builder

	sb.WriteString(`<table class="resource-list">`)
	sb.WriteString(`<thead><tr>`)

	columns := 0
	for _, colName := range schema.ListColumns {
		field := findField(schema.Fields, colName)
		if field != nil {
			sb.WriteString(fmt.Sprintf(`<th>%s</th>`, html.EscapeString(field.Display)))
			columns++
		}
	}

	sb.WriteString(`</tr></thead>`)
	sb.WriteString(`<tbody>`)

	if len(resources) == 0 {
		sb.WriteString(fmt.Sprintf(`<tr><td colspan="%d" class="empty">No %s yet</td></tr>`,
			columns, html.EscapeString(strings.ToLower(schema.Name))))
	}

	for _, resource := range resources {
		sb.WriteString(`<tr>`)
		for _, colName := range schema.ListColumns {
			field := findField(schema.Fields, colName)
			if field == nil {
				continue
			}
			sb.WriteString(fmt.Sprintf(`<td class="%s">%s</td>`,
				html.EscapeString(field.Type),
				html.EscapeString(formatValue(field.Type, resource[colName]))))
		}
		sb.WriteString(`</tr>`)
	}

	sb.WriteString(`</tbody></table>`)
	return sb.String()
}

func findField(fields []core.FieldSchema, name string) *core.FieldSchema {
	for i := range fields {
		if fields[i].Name == name {
			return &fields[i]
		}
	}
	return nil
}

func formatValue(fieldType string, value any) string {
	if value == nil {
		return ""
	}

	switch fieldType {
	case "number":
		switch v := value.(type) {
		case float64:
			return strconv.FormatFloat(v, 'f', 2, 64)
		case float32:
			return strconv.FormatFloat(float64(v), 'f', 2, 32)
		}
	case "list":
		if items, ok := value.([]string); ok {
			return strings.Join(items, ", ")
		}
	}
	return fmt.Sprint(value)
}
