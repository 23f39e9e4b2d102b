package ignorelist

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/backend"
)

func buildDoc(entries []string, sibling string) backend.Document {
	list := make([]any, len(entries))
	for i, e := range entries {
		list[i] = e
	}
	doc := backend.Document{"other_feature": sibling}
	section := map[string]any{"interval": sibling}
	if len(list) > 0 {
		section["ignore_checks"] = list
	}
	doc["health"] = section
	return doc
}

func countOf(doc backend.Document, id string) int {
	n := 0
	for _, s := range IDs(doc) {
		if s == id {
			n++
		}
	}
	return n
}

func TestIgnoreListProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	entries := gen.SliceOf(gen.OneGenOf(gen.Const(check), gen.AlphaString()))

	properties.Property("add(remove(add(D,id),id),id) holds id exactly once", prop.ForAll(
		func(list []string, sibling string) bool {
			d := buildDoc(list, sibling)
			out := Add(Remove(Add(d, check), check), check)
			return countOf(out, check) == 1
		},
		entries, gen.AlphaString(),
	))

	properties.Property("add is idempotent", prop.ForAll(
		func(list []string, sibling string) bool {
			once := Add(buildDoc(list, sibling), check)
			return reflect.DeepEqual(once, Add(once, check))
		},
		entries, gen.AlphaString(),
	))

	properties.Property("remove of an absent id is a no-op", prop.ForAll(
		func(list []string, sibling string) bool {
			d := Remove(buildDoc(list, sibling), check)
			return reflect.DeepEqual(d, Remove(d, check))
		},
		entries, gen.AlphaString(),
	))

	properties.Property("siblings are never touched", prop.ForAll(
		func(list []string, sibling string) bool {
			d := buildDoc(list, sibling)
			for _, out := range []backend.Document{Add(d, check), Remove(d, check)} {
				if out["other_feature"] != sibling {
					return false
				}
				if out["health"].(map[string]any)["interval"] != sibling {
					return false
				}
			}
			return true
		},
		entries, gen.AlphaString(),
	))

	properties.Property("remove never leaves an empty list", prop.ForAll(
		func(list []string) bool {
			out := Remove(buildDoc(list, "s"), check)
			v, present := out["health"].(map[string]any)["ignore_checks"]
			if !present {
				return true
			}
			return len(v.([]any)) > 0
		},
		gen.SliceOf(gen.Const(check)),
	))

	properties.TestingRun(t)
}
