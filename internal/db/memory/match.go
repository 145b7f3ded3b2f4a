package memory

import (
	"reflect"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// matchDoc evaluates the subset of the query language the mapper emits:
// top-level conjunction, dotted paths fanning out over arrays, equality,
// $and, $or, $in, $nin, $ne, $all and $exists.
func matchDoc(doc bson.M, filter bson.M) bool {
	for key, cond := range filter {
		switch key {
		case "$and":
			for _, sub := range toSlice(cond) {
				m, ok := sub.(bson.M)
				if !ok || !matchDoc(doc, m) {
					return false
				}
			}
		case "$or":
			matched := false
			for _, sub := range toSlice(cond) {
				if m, ok := sub.(bson.M); ok && matchDoc(doc, m) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		default:
			values, present := resolvePath(doc, key)
			if !matchCond(values, present, cond) {
				return false
			}
		}
	}
	return true
}

func matchCond(values []any, present bool, cond any) bool {
	ops, isOps := asOperatorDoc(cond)
	if !isOps {
		return containsEqual(values, cond)
	}
	for op, arg := range ops {
		switch op {
		case "$in":
			found := false
			for _, candidate := range toSlice(arg) {
				if containsEqual(values, candidate) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case "$nin":
			for _, candidate := range toSlice(arg) {
				if containsEqual(values, candidate) {
					return false
				}
			}
		case "$ne":
			if containsEqual(values, arg) {
				return false
			}
		case "$all":
			for _, want := range toSlice(arg) {
				if !containsEqual(values, want) {
					return false
				}
			}
		case "$exists":
			want, _ := arg.(bool)
			if present != want {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// asOperatorDoc reports whether cond is a document of $-operators rather than
// a literal value to compare against.
func asOperatorDoc(cond any) (bson.M, bool) {
	m, ok := cond.(bson.M)
	if !ok || len(m) == 0 {
		return nil, false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return m, true
}

// resolvePath walks a dotted path, fanning out over array elements so that
// "chapters.name" yields every chapter name.
func resolvePath(v any, path string) ([]any, bool) {
	current := []any{v}
	for _, part := range strings.Split(path, ".") {
		var next []any
		for _, c := range current {
			switch cv := c.(type) {
			case bson.M:
				if sub, ok := cv[part]; ok {
					next = append(next, sub)
				}
			case map[string]any:
				if sub, ok := cv[part]; ok {
					next = append(next, sub)
				}
			case bson.A:
				for _, elem := range cv {
					if m, ok := elem.(bson.M); ok {
						if sub, ok := m[part]; ok {
							next = append(next, sub)
						}
					}
				}
			case []any:
				for _, elem := range cv {
					if m, ok := elem.(bson.M); ok {
						if sub, ok := m[part]; ok {
							next = append(next, sub)
						}
					}
				}
			}
		}
		if len(next) == 0 {
			return nil, false
		}
		current = next
	}
	return current, true
}

// containsEqual reports whether any resolved value (or any element of a
// resolved array value) equals want.
func containsEqual(values []any, want any) bool {
	for _, v := range values {
		if valuesEqual(v, want) {
			return true
		}
		for _, elem := range toSlice(v) {
			if valuesEqual(elem, want) {
				return true
			}
		}
	}
	return false
}

func valuesEqual(a, b any) bool {
	na, nb := normalize(a), normalize(b)
	if ta, ok := na.(time.Time); ok {
		if tb, ok := nb.(time.Time); ok {
			return ta.Equal(tb)
		}
		return false
	}
	if na == nil || nb == nil {
		return na == nil && nb == nil
	}
	if !reflect.TypeOf(na).Comparable() || !reflect.TypeOf(nb).Comparable() {
		return reflect.DeepEqual(na, nb)
	}
	return na == nb
}

// normalize folds numeric kinds together so int and int64 filter values
// compare equal against stored payloads.
func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float32:
		return float64(n)
	case primitive.DateTime:
		return n.Time()
	default:
		return v
	}
}

func compareValues(a, b any) int {
	na, nb := normalize(a), normalize(b)
	switch av := na.(type) {
	case int64:
		if bv, ok := nb.(int64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case float64:
		if bv, ok := nb.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case string:
		if bv, ok := nb.(string); ok {
			return strings.Compare(av, bv)
		}
	case time.Time:
		if bv, ok := nb.(time.Time); ok {
			switch {
			case av.Before(bv):
				return -1
			case av.After(bv):
				return 1
			}
			return 0
		}
	}
	return 0
}

func toSlice(v any) []any {
	switch s := v.(type) {
	case bson.A:
		return s
	case []any:
		return s
	case []string:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out
	default:
		return nil
	}
}

func copyDoc(doc bson.M) bson.M {
	out := make(bson.M, len(doc))
	for k, v := range doc {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch cv := v.(type) {
	case bson.M:
		return copyDoc(cv)
	case map[string]any:
		return copyDoc(bson.M(cv))
	case bson.A:
		out := make(bson.A, len(cv))
		for i, e := range cv {
			out[i] = copyValue(e)
		}
		return out
	case []any:
		out := make(bson.A, len(cv))
		for i, e := range cv {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}

// applyUpdate applies $set and $unset sections in place, reporting whether
// anything changed.
func applyUpdate(doc bson.M, update bson.M) bool {
	modified := false
	if set, ok := update["$set"].(bson.M); ok {
		for k, v := range set {
			if !valuesEqual(doc[k], v) {
				modified = true
			}
			doc[k] = copyValue(v)
		}
	}
	if unset, ok := update["$unset"].(bson.M); ok {
		for k := range unset {
			if _, had := doc[k]; had {
				delete(doc, k)
				modified = true
			}
		}
	}
	return modified
}
