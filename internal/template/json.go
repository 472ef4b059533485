package template

import "encoding/json"

func context2JSON(context map[string]interface{}) ([]byte, error) {
	return json.Marshal(context)
}
