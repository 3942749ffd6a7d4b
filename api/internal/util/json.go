package util

// FixJSONSchemaStrict brings a schema to the form OpenAI strict mode accepts: every object gets
// type=object, all of its properties listed in required and additionalProperties=false.
// Root-level $schema and title are dropped.
func FixJSONSchemaStrict(root map[string]any) {
	delete(root, "$schema")
	delete(root, "title")
	fixStrict(root)
}

func fixStrict(node any) {
	switch n := node.(type) {
	case map[string]any:
		if props, ok := n["properties"].(map[string]any); ok {
			if _, hasType := n["type"]; !hasType {
				n["type"] = "object"
			}
			req := make([]any, 0, len(props))
			for k := range props {
				req = append(req, k)
			}
			n["required"] = req
			n["additionalProperties"] = false
			for _, v := range props {
				fixStrict(v)
			}
		}
		if items, ok := n["items"]; ok {
			switch it := items.(type) {
			case map[string]any:
				fixStrict(it)
			case []any:
				for _, el := range it {
					fixStrict(el)
				}
			}
		}
		for _, k := range []string{"oneOf", "anyOf", "allOf"} {
			if arr, ok := n[k].([]any); ok {
				for _, el := range arr {
					fixStrict(el)
				}
			}
		}
	case []any:
		for _, v := range n {
			fixStrict(v)
		}
	}
}
