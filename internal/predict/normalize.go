package predict

import (
	"fmt"
	"time"

	"github.com/suPer8Hu/medirec/internal/models"
	"github.com/tidwall/gjson"
)

// listShape is the closed set of forms the upstream medications/diet fields arrive in.
type listShape int

const (
	// null, absent, not an array, or an empty array
	shapeEmpty listShape = iota
	// first element is a string that does not decode to an array; the outer
	// array itself is taken as the list
	shapeFlatArray
	// ["[\"a\",\"b\"]"]: first element is a JSON-encoded array
	shapeNestedJSONString
	// [["a","b"]]: first element is already the list
	shapeNestedArray
)

func (s listShape) String() string {
	switch s {
	case shapeEmpty:
		return "empty"
	case shapeFlatArray:
		return "flat_array"
	case shapeNestedJSONString:
		return "nested_json_string"
	case shapeNestedArray:
		return "nested_array"
	default:
		return fmt.Sprintf("listShape(%d)", int(s))
	}
}

type listField struct {
	shape listShape
	items []string
}

func classifyList(v gjson.Result) listField {
	if !v.IsArray() {
		return listField{shape: shapeEmpty, items: []string{}}
	}
	elems := v.Array()
	if len(elems) == 0 {
		return listField{shape: shapeEmpty, items: []string{}}
	}

	first := elems[0]
	if first.Type == gjson.String {
		if decoded, ok := decodeStringArray(first.Str); ok {
			return listField{shape: shapeNestedJSONString, items: decoded}
		}
		// Upstream sometimes sends a plain list of strings here; keep the whole
		// outer array rather than the element that failed to decode.
		return listField{shape: shapeFlatArray, items: stringsOf(elems)}
	}

	if !first.IsArray() {
		return listField{shape: shapeNestedArray, items: []string{}}
	}
	return listField{shape: shapeNestedArray, items: stringsOf(first.Array())}
}

// normalizeList applies the medications/diet rules.
func normalizeList(v gjson.Result) []string {
	return classifyList(v).items
}

// normalizeArray applies the workout/precautions rule: arrays pass through, anything else is empty.
func normalizeArray(v gjson.Result) []string {
	if !v.IsArray() {
		return []string{}
	}
	return stringsOf(v.Array())
}

func decodeStringArray(s string) ([]string, bool) {
	if !gjson.Valid(s) {
		return nil, false
	}
	r := gjson.Parse(s)
	if !r.IsArray() {
		return nil, false
	}
	return stringsOf(r.Array()), true
}

func stringsOf(elems []gjson.Result) []string {
	out := make([]string, 0, len(elems))
	for _, e := range elems {
		if e.Type == gjson.String {
			out = append(out, e.Str)
			continue
		}
		out = append(out, e.Raw)
	}
	return out
}

// parseEnvelope validates {status:"success", data:{...}} and returns data.
func parseEnvelope(body []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("%w: body is not valid JSON", ErrMalformedResponse)
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return gjson.Result{}, fmt.Errorf("%w: body is not an object", ErrMalformedResponse)
	}
	status := root.Get("status")
	if status.Type != gjson.String || status.Str != "success" {
		return gjson.Result{}, fmt.Errorf("%w: status %s", ErrMalformedResponse, status.Raw)
	}
	data := root.Get("data")
	if !data.IsObject() {
		return gjson.Result{}, fmt.Errorf("%w: missing data object", ErrMalformedResponse)
	}
	return data, nil
}

func buildRecord(id string, symptoms []string, data gjson.Result, now time.Time) *models.Prediction {
	return &models.Prediction{
		ID:               id,
		UserID:           "",
		Symptoms:         append(make([]string, 0, len(symptoms)), symptoms...),
		PredictedDisease: data.Get("predicted_disease").String(),
		Description:      data.Get("description").String(),
		Medications:      normalizeList(data.Get("medications")),
		Diet:             normalizeList(data.Get("diet")),
		Workout:          normalizeArray(data.Get("workout")),
		Precautions:      normalizeArray(data.Get("precautions")),
		CreatedAt:        models.FormatTimestamp(now),
	}
}
