package broadcast

import "strings"

// Topics builds the MQTT topic names under a prefix.
type Topics struct {
	Prefix string
}

func (t Topics) join(leaf string) string {
	return strings.TrimSuffix(t.Prefix, "/") + "/" + leaf
}

// Connection carries {"connected": bool}.
func (t Topics) Connection() string { return t.join("connection") }

// Colors carries {"colors": [...]}.
func (t Topics) Colors() string { return t.join("colors") }

// Init receives the retained {"app_id": "..."} announcement.
func (t Topics) Init() string { return t.join("init") }
