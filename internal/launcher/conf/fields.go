package conf

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/sjzar/xivlauncher/internal/model"
)

// readOnlyFields cannot be changed through SetProfileField.
var readOnlyFields = map[string]bool{"id": true}

// ProfileFields lists the settable keys of a profile in dotted form, with
// their current values.
func ProfileFields(p *model.Profile) ([][2]string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var fields [][2]string
	var walk func(prefix string, r gjson.Result)
	walk = func(prefix string, r gjson.Result) {
		r.ForEach(func(key, value gjson.Result) bool {
			name := key.String()
			if prefix != "" {
				name = prefix + "." + name
			}
			if value.IsObject() {
				walk(name, value)
			} else if !readOnlyFields[name] {
				fields = append(fields, [2]string{name, value.String()})
			}
			return true
		})
	}
	walk("", gjson.ParseBytes(data))
	return fields, nil
}

// SetProfileField assigns value to the dotted key (for example
// "dalamud.channel"), parsing it according to the field's current type.
func SetProfileField(p *model.Profile, key, value string) error {
	if readOnlyFields[key] {
		return fmt.Errorf("field %q is read-only", key)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	current := gjson.GetBytes(data, key)
	if !current.Exists() {
		return fmt.Errorf("unknown profile field %q", key)
	}

	var parsed any
	switch current.Type {
	case gjson.True, gjson.False:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("field %q wants true or false", key)
		}
		parsed = b
	case gjson.Number:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("field %q wants a number", key)
		}
		parsed = n
	case gjson.String:
		parsed = value
	default:
		return fmt.Errorf("field %q cannot be set", key)
	}

	doc := map[string]any{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	parts := strings.Split(key, ".")
	node := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := node[part].(map[string]any)
		if !ok {
			return fmt.Errorf("unknown profile field %q", key)
		}
		node = next
	}
	node[parts[len(parts)-1]] = parsed

	if data, err = json.Marshal(doc); err != nil {
		return err
	}
	updated := *p
	if err := json.Unmarshal(data, &updated); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	if !updated.Dalamud.Channel.Valid() {
		return fmt.Errorf("unknown add-on channel %q", updated.Dalamud.Channel)
	}
	*p = updated
	return nil
}
