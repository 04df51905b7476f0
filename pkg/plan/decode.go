// Package plan turns raw planner responses into validated move operations.
//
// The planner is untrusted: its output is decoded defensively, deduplicated,
// optionally completed for full coverage, and checked against the safety
// rules before the compiler produces concrete operations. Nothing in this
// package writes to disk; compilation only performs existence checks.
package plan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tidyfolder/tidyfolder/internal/models"
	"github.com/tidyfolder/tidyfolder/pkg/logger"
)

var log *logrus.Entry

func init() {
	log = logger.WithName("plan")
}

// Models wrap JSON in markdown fences despite being told not to.
var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// Parse extracts a Plan from a raw planner response. Three attempts, in
// order: the response as-is, the first fenced code block, and the outermost
// brace-delimited span. An error means no usable JSON object was found
// anywhere in the response.
func Parse(raw models.RawPlan) (*models.Plan, error) {
	text := string(raw)

	if p, err := decodePlanObject(text); err == nil {
		return p, nil
	}

	if strings.Contains(text, "```") {
		if m := fencedJSON.FindStringSubmatch(text); m != nil {
			if p, err := decodePlanObject(m[1]); err == nil {
				log.Debug("Recovered plan from fenced code block")
				return p, nil
			}
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		if p, err := decodePlanObject(text[start : end+1]); err == nil {
			log.Debug("Recovered plan from brace-delimited span")
			return p, nil
		}
	}

	return nil, fmt.Errorf("no JSON object found in planner response")
}

// decodePlanObject decodes one JSON object into a Plan. The folders object
// is walked token by token to preserve the planner's key order; a Go map
// would randomize it and make deduplication nondeterministic.
func decodePlanObject(text string) (*models.Plan, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("response is not a JSON object")
	}

	p := &models.Plan{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
		key, _ := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decoding %q value: %w", key, err)
		}
		if key == "folders" {
			p.Folders = decodeFolders(raw)
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return p, nil
}

// decodeFolders decodes the folders object. Duplicate folder keys follow
// JSON merge semantics: the last value wins, at the first key's position.
// Folder values that are not arrays are dropped. Returns nil when the value
// is not an object at all, which the validator reports.
func decodeFolders(raw json.RawMessage) []models.PlanFolder {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil
	}

	type entry struct {
		name string
		raw  json.RawMessage
	}
	var entries []entry
	pos := make(map[string]int)

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil
		}
		name, _ := keyTok.(string)

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil
		}
		if i, ok := pos[name]; ok {
			entries[i].raw = value
		} else {
			pos[name] = len(entries)
			entries = append(entries, entry{name: name, raw: value})
		}
	}

	folders := make([]models.PlanFolder, 0, len(entries))
	for _, e := range entries {
		ids, ok := decodeIDList(e.raw)
		if !ok {
			log.WithField("folder", e.name).Debug("Dropping folder whose value is not a list")
			continue
		}
		folders = append(folders, models.PlanFolder{Name: e.name, IDs: ids})
	}
	return folders
}

// decodeIDList decodes one folder's file references. Every element is kept,
// numeric or not; the validator is the place that rejects garbage, with the
// original token in the violation message.
func decodeIDList(raw json.RawMessage) ([]models.PlanID, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, false
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, false
	}

	ids := []models.PlanID{}
	for dec.More() {
		var elem any
		if err := dec.Decode(&elem); err != nil {
			return nil, false
		}
		ids = append(ids, planIDFromValue(elem))
	}
	return ids, true
}

// planIDFromValue coerces one JSON array element to a file reference.
// Integers, whole floats, and numeric strings coerce; anything else is
// carried through as a non-numeric token for the validator to name.
func planIDFromValue(v any) models.PlanID {
	switch x := v.(type) {
	case json.Number:
		if n, err := strconv.ParseInt(x.String(), 10, 64); err == nil {
			return models.PlanID{Value: n, Raw: x.String(), Numeric: true}
		}
		if f, err := strconv.ParseFloat(x.String(), 64); err == nil && f == math.Trunc(f) && math.Abs(f) < 1<<62 {
			return models.PlanID{Value: int64(f), Raw: x.String(), Numeric: true}
		}
		return models.PlanID{Raw: x.String()}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
			return models.PlanID{Value: n, Raw: x, Numeric: true}
		}
		return models.PlanID{Raw: x}
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return models.PlanID{Raw: fmt.Sprintf("%v", v)}
		}
		return models.PlanID{Raw: string(data)}
	}
}
