package apiclient

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// The backend names record identifiers "_id"; the console uses "id".
const serverIDField = "_id"

var pathEscaper = strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`)

type idFix struct {
	path  string
	value string
}

// NormalizeIDs rewrites a JSON document so every object that carries "_id"
// also carries "id" with the same value, and every numeric "id" becomes a
// string. It applies to all records at any depth. Non-JSON input is returned
// unchanged.
func NormalizeIDs(body []byte) ([]byte, error) {
	if !gjson.ValidBytes(body) {
		return body, nil
	}

	var fixes []idFix
	collectIDFixes(gjson.ParseBytes(body), "", &fixes)

	out := body
	for _, fix := range fixes {
		var err error
		out, err = sjson.SetBytes(out, fix.path, fix.value)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func collectIDFixes(r gjson.Result, prefix string, fixes *[]idFix) {
	switch {
	case r.IsObject():
		id := r.Get("id")
		serverID := r.Get(serverIDField)
		switch {
		case !id.Exists() && serverID.Exists():
			*fixes = append(*fixes, idFix{path: joinPath(prefix, "id"), value: serverID.String()})
		case id.Type == gjson.Number:
			*fixes = append(*fixes, idFix{path: joinPath(prefix, "id"), value: id.String()})
		}
		r.ForEach(func(key, value gjson.Result) bool {
			if value.IsObject() || value.IsArray() {
				collectIDFixes(value, joinPath(prefix, pathEscaper.Replace(key.String())), fixes)
			}
			return true
		})
	case r.IsArray():
		i := 0
		r.ForEach(func(_, value gjson.Result) bool {
			if value.IsObject() || value.IsArray() {
				collectIDFixes(value, joinPath(prefix, strconv.Itoa(i)), fixes)
			}
			i++
			return true
		})
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
