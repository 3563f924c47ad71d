package homework

// Record is a decoded status API body, kept verbatim.
type Record = any

// JSON keys of the status API payload.
const (
	KeyHomeworks = "homeworks"
	KeyName      = "homework_name"
	KeyStatus    = "status"
)

// ExtractItems returns the homeworks list of a decoded response.
// An empty list is valid and means there is nothing new.
func ExtractItems(record Record) ([]any, error) {
	if record == nil {
		return nil, Empty("response body is null")
	}
	obj, ok := record.(map[string]any)
	if !ok {
		return nil, Shape("response is %T, want object", record)
	}
	raw, ok := obj[KeyHomeworks]
	if !ok {
		return nil, Missing(KeyHomeworks)
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, Shape("%s is %T, want list", KeyHomeworks, raw)
	}
	return items, nil
}
