package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/itchyny/gojq"

	"chromecontrol/internal/dispatcher"
	cerrors "chromecontrol/internal/errors"
	"chromecontrol/internal/termmd"
)

// registerDocsTools exposes the tool catalog as rendered markdown (reusing
// the teacher's internal/termmd goldmark-based terminal renderer, built for
// its own --help output) and a generic JQ filter tool (reusing
// internal/recorder's gojq-based applyJQFilter pattern, generalized from
// one HAR entry to any JSON value a caller hands it).
func registerDocsTools(reg *Registry) {
	reg.Dispatcher.Register(&dispatcher.Tool{
		Name:        "describe_tools",
		Description: "Render the currently visible tool catalog as formatted text.",
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			summaries := reg.Dispatcher.List()

			var md strings.Builder
			md.WriteString("# Available tools\n\n")
			for _, t := range summaries {
				md.WriteString(fmt.Sprintf("## %s\n\n%s\n\n", t.Name, t.Description))
				for _, p := range t.Schema.Params {
					req := ""
					if p.Required {
						req = " (required)"
					}
					md.WriteString(fmt.Sprintf("- `%s` (%s)%s\n", p.Name, p.Kind, req))
				}
				md.WriteString("\n")
			}

			rendered, err := termmd.RenderMarkdown(md.String())
			if err != nil {
				return nil, cerrors.Wrap(err, cerrors.ChromeScriptError, "rendering tool catalog")
			}
			return map[string]interface{}{"catalog": rendered, "tool_count": len(summaries)}, nil
		},
	})

	reg.Dispatcher.Register(&dispatcher.Tool{
		Name:        "jq_filter",
		Description: "Apply a jq-style filter expression to a JSON value and return the result.",
		Advanced:    true,
		Schema: dispatcher.Schema{Params: []dispatcher.Param{
			{Name: "expr", Kind: dispatcher.KindString, Required: true},
			{Name: "input", Kind: dispatcher.KindObject, Required: true},
		}},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			expr := str(args, "expr")
			input := args["input"]

			query, err := gojq.Parse(expr)
			if err != nil {
				return nil, cerrors.Wrap(err, cerrors.InvalidArguments, "parsing jq expression")
			}

			iter := query.Run(input)
			results := make([]interface{}, 0, 1)
			for {
				v, ok := iter.Next()
				if !ok {
					break
				}
				if jqErr, ok := v.(error); ok {
					return nil, cerrors.Wrap(jqErr, cerrors.InvalidArguments, "evaluating jq expression")
				}
				results = append(results, v)
			}

			raw, err := json.Marshal(results)
			if err != nil {
				return nil, cerrors.Wrap(err, cerrors.ChromeScriptError, "marshaling jq result")
			}
			var decoded interface{}
			_ = json.Unmarshal(raw, &decoded)

			return map[string]interface{}{"results": decoded}, nil
		},
	})
}
